package domain

import "time"

// Label is the classification of a user utterance.
type Label string

// Classification labels.
const (
	// LabelRNADesign is a domain-specific question about RNA design.
	LabelRNADesign Label = "rna_design"

	// LabelGeneralBioinfo is a domain-adjacent bioinformatics question.
	LabelGeneralBioinfo Label = "general_bioinfo"

	// LabelOffTopic is anything else.
	LabelOffTopic Label = "off_topic"
)

// IsValid returns true if the label is one of the three known labels.
func (l Label) IsValid() bool {
	switch l {
	case LabelRNADesign, LabelGeneralBioinfo, LabelOffTopic:
		return true
	default:
		return false
	}
}

// InDomain reports whether the label may trigger retrieval-backed answers and tools.
func (l Label) InDomain() bool {
	return l == LabelRNADesign || l == LabelGeneralBioinfo
}

// String returns the string representation.
func (l Label) String() string {
	return string(l)
}

// ClassificationSource records how a label was decided.
type ClassificationSource string

// Classification sources.
const (
	ClassifiedByRules    ClassificationSource = "rules"
	ClassifiedByModel    ClassificationSource = "model"
	ClassifiedByFallback ClassificationSource = "fallback"
)

// Classification is the classifier's decision for one utterance.
type Classification struct {
	Label      Label
	Confidence float64
	Source     ClassificationSource
}

// Stage is a state of the per-request conversation state machine.
type Stage string

// Conversation stages.
const (
	StageClassifying          Stage = "classifying"
	StageRetrievingContext    Stage = "retrieving_context"
	StageToolOrchestrating    Stage = "tool_orchestrating"
	StageDomainExpert         Stage = "domain_expert"
	StageAdjacentExpert       Stage = "adjacent_expert"
	StageOffTopicRedirect     Stage = "off_topic_redirect"
	StageEvidenceInsufficient Stage = "evidence_insufficient"
	StageFormatting           Stage = "formatting"
	StageDone                 Stage = "done"
)

// ConversationState is the working state of a single chat request.
// It is created per request and discarded after formatting.
type ConversationState struct {
	RequestID             string
	Message               string
	UploadedFiles         []UploadedFile
	Classification        Classification
	Context               string
	Citations             []Citation
	Report                *ExecutionReport
	HasSufficientEvidence bool
	Response              string
	Generated             bool
	Trace                 []Stage
}

// ToolsUsed returns the tools that completed successfully for this request.
func (s *ConversationState) ToolsUsed() []ToolID {
	if s.Report == nil {
		return nil
	}
	return s.Report.Succeeded()
}

// MemoryEntry is one completed exchange kept in conversation memory.
type MemoryEntry struct {
	UserText      string    `json:"user"`
	AssistantText string    `json:"assistant"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatRequest is an inbound chat turn.
type ChatRequest struct {
	Message       string         `json:"message"`
	UploadedFiles []UploadedFile `json:"uploaded_files,omitempty"`
}

// ChatResponse is the formatted result of a chat turn.
type ChatResponse struct {
	RequestID      string           `json:"request_id"`
	Response       string           `json:"response"`
	Label          Label            `json:"classification"`
	Confidence     float64          `json:"confidence"`
	ToolsUsed      []ToolID         `json:"tools_used"`
	ToolReport     *ExecutionReport `json:"tool_report,omitempty"`
	Citations      []Citation       `json:"citations"`
	ContextUsed    bool             `json:"rag_context_used"`
	EvidenceBacked bool             `json:"evidence_backed"`
	Model          string           `json:"model,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// StreamEventType is the type tag of a streaming event.
type StreamEventType string

// Stream event types.
const (
	EventToken      StreamEventType = "token"
	EventToolStatus StreamEventType = "tool_status"
	EventComplete   StreamEventType = "complete"
	EventError      StreamEventType = "error"
)

// ToolStatus is the lifecycle state reported for a tool call.
type ToolStatus string

// Tool statuses.
const (
	ToolStarted   ToolStatus = "started"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

// StreamEvent is one event of a streaming chat response.
// Every stream ends with exactly one complete or error event.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Content  string          `json:"content,omitempty"`
	Tool     ToolID          `json:"tool,omitempty"`
	Status   ToolStatus      `json:"status,omitempty"`
	Message  string          `json:"message,omitempty"`
	Response *ChatResponse   `json:"response,omitempty"`
}

// IsTerminal reports whether the event ends a stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
