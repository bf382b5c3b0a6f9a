package domain

import "errors"

// Lookup and validation.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrIndexingInProgress rejects a second concurrent directory ingestion.
	ErrIndexingInProgress = errors.New("indexing in progress")
)

// Provider availability. Returned when a provider is unconfigured or fails
// its startup probe.
var (
	ErrLLMUnavailable       = errors.New("LLM service unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the collection it is written to or searched against.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Pipeline failures. Stages wrap their errors with one of these; each kind
// is degraded differently by the chat and ingestion services.
var (
	// ErrIngestion fails one document; the rest of the batch continues.
	ErrIngestion = errors.New("ingestion failed")
	// ErrEmbedding drops one unit.
	ErrEmbedding = errors.New("embedding failed")
	// ErrRetrieval leaves the turn with an empty context.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrClassification fails closed to off-topic.
	ErrClassification = errors.New("classification failed")
	// ErrToolInvocation is recorded in the execution report.
	ErrToolInvocation = errors.New("tool invocation failed")
	// ErrGeneration is shown to the user as the apology template.
	ErrGeneration = errors.New("generation failed")
	// ErrEvidenceInsufficient is a policy outcome rather than a fault.
	ErrEvidenceInsufficient = errors.New("insufficient evidence")
	// ErrCancelled ends a stream the client abandoned.
	ErrCancelled = errors.New("cancelled")
)
