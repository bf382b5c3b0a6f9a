package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/prompts"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

const (
	// maxToolPayloadChars caps each tool payload quoted in a prompt.
	maxToolPayloadChars = 2000

	// streamBuffer is the capacity of a stream's event channel.
	streamBuffer = 16

	// terminalSendTimeout bounds delivery of the final event to a reader
	// that stopped listening.
	terminalSendTimeout = 5 * time.Second

	noContext = "No specific context provided"
)

// ChatConfig holds the tunables of a chat request.
type ChatConfig struct {
	ContextUnits    int
	ImageUnits      int
	MinScore        float64
	ContextEntries  int
	Temperature     float64
	MaxTokens       int
	GenerateTimeout time.Duration
}

// ChatConfigFromSettings derives a ChatConfig from application settings.
func ChatConfigFromSettings(s domain.AppSettings) ChatConfig {
	return ChatConfig{
		ContextUnits:    s.Retrieval.ContextUnits,
		ImageUnits:      s.Retrieval.ImageUnits,
		MinScore:        s.Retrieval.MinScore,
		ContextEntries:  s.Memory.ContextEntries,
		Temperature:     s.LLM.Temperature,
		MaxTokens:       s.LLM.MaxTokens,
		GenerateTimeout: s.LLM.Timeout,
	}
}

// ChatService runs the per-request conversation state machine:
// classify, retrieve, orchestrate tools, answer, format.
type ChatService struct {
	classifier *Classifier
	retriever  *SearchService
	memory     *ConversationMemory
	tools      *ToolOrchestrator
	llm        driven.LLMService
	prompts    driven.PromptStore
	config     ChatConfig

	mu       sync.Mutex
	inflight map[string]context.CancelFunc

	now   func() time.Time
	newID func() string
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithChatLLM sets the answering model. Without one, expert stages
// answer with the apology text.
func WithChatLLM(llm driven.LLMService) ChatOption {
	return func(s *ChatService) { s.llm = llm }
}

// WithChatTools enables tool orchestration.
func WithChatTools(tools *ToolOrchestrator) ChatOption {
	return func(s *ChatService) { s.tools = tools }
}

// WithChatPrompts sets the prompt store used for templates.
func WithChatPrompts(store driven.PromptStore) ChatOption {
	return func(s *ChatService) { s.prompts = store }
}

// WithChatConfig overrides the request tunables.
func WithChatConfig(cfg ChatConfig) ChatOption {
	return func(s *ChatService) { s.config = cfg }
}

// NewChatService creates a chat service.
func NewChatService(classifier *Classifier, retriever *SearchService, memory *ConversationMemory, opts ...ChatOption) *ChatService {
	s := &ChatService{
		classifier: classifier,
		retriever:  retriever,
		memory:     memory,
		config:     ChatConfigFromSettings(domain.DefaultAppSettings()),
		inflight:   make(map[string]context.CancelFunc),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat runs one request to completion.
func (s *ChatService) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	state, stage, messages := s.prepare(ctx, s.newID(), req, nil)
	if stage == domain.StageDomainExpert || stage == domain.StageAdjacentExpert {
		state.Response, state.Generated = s.generate(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := s.finish(state)
	s.memory.Append(req.Message, state.Response)
	return resp, nil
}

// ChatStream starts a request whose answer is delivered as events.
func (s *ChatService) ChatStream(ctx context.Context, req domain.ChatRequest) (*driving.StreamHandle, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	id := s.newID()
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.inflight[id] = cancel
	s.mu.Unlock()

	events := make(chan domain.StreamEvent, streamBuffer)
	go func() {
		defer close(events)
		defer s.release(id)
		s.stream(runCtx, id, req, events)
	}()

	return &driving.StreamHandle{ID: id, Events: events, Cancel: cancel}, nil
}

// Cancel stops an in-flight streaming request.
func (s *ChatService) Cancel(requestID string) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[requestID]
	s.mu.Unlock()
	if ok {
		logger.Info("Cancelling request %s", requestID)
		cancel()
	}
	return ok
}

func (s *ChatService) release(id string) {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	delete(s.inflight, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *ChatService) stream(ctx context.Context, id string, req domain.ChatRequest, events chan<- domain.StreamEvent) {
	emit := func(e domain.StreamEvent) bool {
		select {
		case events <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
	terminate := func(e domain.StreamEvent) {
		select {
		case events <- e:
		case <-time.After(terminalSendTimeout):
			logger.Warn("Request %s: reader gone, dropping %s event", id, e.Type)
		}
	}
	cancelled := func() {
		logger.Info("Request %s cancelled", id)
		terminate(domain.StreamEvent{Type: domain.EventError, Message: domain.ErrCancelled.Error()})
	}

	state, stage, messages := s.prepare(ctx, id, req, func(e domain.StreamEvent) { emit(e) })
	if ctx.Err() != nil {
		cancelled()
		return
	}

	if stage == domain.StageDomainExpert || stage == domain.StageAdjacentExpert {
		answer, err := s.streamAnswer(ctx, messages, emit)
		switch {
		case ctx.Err() != nil:
			cancelled()
			return
		case err != nil && answer == "":
			logger.Error("%v", fmt.Errorf("%w: %w", domain.ErrGeneration, err))
			state.Response = s.apology()
			emit(domain.StreamEvent{Type: domain.EventToken, Content: state.Response})
		case err != nil:
			logger.Error("%v", fmt.Errorf("%w: %w", domain.ErrGeneration, err))
			terminate(domain.StreamEvent{Type: domain.EventError, Message: s.apology()})
			return
		default:
			state.Response, state.Generated = answer, true
		}
	} else if !emit(domain.StreamEvent{Type: domain.EventToken, Content: state.Response}) {
		cancelled()
		return
	}

	resp := s.finish(state)
	s.memory.Append(req.Message, state.Response)
	terminate(domain.StreamEvent{Type: domain.EventComplete, Response: resp})
}

// streamAnswer relays model chunks as token events and returns the full
// answer. The partial answer is returned with the error that ended it.
func (s *ChatService) streamAnswer(ctx context.Context, messages []driven.ChatMessage, emit func(domain.StreamEvent) bool) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	chunks, err := s.llm.Stream(ctx, messages, s.chatOptions())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return b.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return b.String(), err
				}
				if b.Len() == 0 {
					return "", errors.New("empty answer")
				}
				return b.String(), nil
			}
			if chunk.Err != nil {
				return b.String(), chunk.Err
			}
			if chunk.Content == "" {
				continue
			}
			b.WriteString(chunk.Content)
			if !emit(domain.StreamEvent{Type: domain.EventToken, Content: chunk.Content}) {
				return b.String(), ctx.Err()
			}
		}
	}
}

// prepare runs every stage before answer generation. Template answers are
// already in state.Response; expert stages return the model messages.
func (s *ChatService) prepare(ctx context.Context, id string, req domain.ChatRequest, onStatus func(domain.StreamEvent)) (*domain.ConversationState, domain.Stage, []driven.ChatMessage) {
	state := &domain.ConversationState{
		RequestID:     id,
		Message:       req.Message,
		UploadedFiles: req.UploadedFiles,
	}

	// 1. CLASSIFY
	state.Trace = append(state.Trace, domain.StageClassifying)
	state.Classification = s.classifier.Classify(ctx, req.Message)
	label := state.Classification.Label

	// 2. RETRIEVE
	state.Trace = append(state.Trace, domain.StageRetrievingContext)
	s.retrieve(ctx, state)

	// 3. TOOLS
	if label.InDomain() && s.tools != nil {
		plan := s.tools.Plan(req.Message, req.UploadedFiles)
		if !plan.Empty() {
			state.Trace = append(state.Trace, domain.StageToolOrchestrating)
			logger.Info("Request %s: running %d tools (%s)", shortHash(id), len(plan.Tools), plan.Reasoning())
			state.Report = s.tools.Execute(ctx, plan, req.UploadedFiles, onStatus)
		}
	}

	// 4. ROUTE
	state.HasSufficientEvidence = s.hasEvidence(state)
	stage := route(label, state.HasSufficientEvidence)
	state.Trace = append(state.Trace, stage)
	logger.Debug("Request %s routed to %s", shortHash(id), stage)

	var messages []driven.ChatMessage
	switch stage {
	case domain.StageOffTopicRedirect:
		state.Response = prompts.Render(loadPrompt(s.prompts, driven.PromptOffTopic), req.Message, "")
	case domain.StageEvidenceInsufficient:
		logger.Info("Request %s: %v, returning the literature template", shortHash(id), domain.ErrEvidenceInsufficient)
		state.Response = prompts.Render(loadPrompt(s.prompts, driven.PromptLiteratureRequired), req.Message, "")
	default:
		name := driven.PromptRNAExpert
		if stage == domain.StageAdjacentExpert {
			name = driven.PromptGeneralBioinfo
		}
		system := prompts.Render(loadPrompt(s.prompts, name), req.Message, s.contextSlot(state))
		messages = []driven.ChatMessage{
			{Role: driven.RoleSystem, Content: system},
			{Role: driven.RoleUser, Content: req.Message},
		}
	}
	return state, stage, messages
}

func route(label domain.Label, evidence bool) domain.Stage {
	switch {
	case !label.InDomain():
		return domain.StageOffTopicRedirect
	case !evidence:
		return domain.StageEvidenceInsufficient
	case label == domain.LabelRNADesign:
		return domain.StageDomainExpert
	default:
		return domain.StageAdjacentExpert
	}
}

// retrieve fills the context and citations. Failures leave both empty.
func (s *ChatService) retrieve(ctx context.Context, state *domain.ConversationState) {
	if s.retriever == nil {
		return
	}
	var (
		text      string
		citations []domain.Citation
		err       error
	)
	if s.config.ImageUnits > 0 {
		text, citations, err = s.retriever.BuildMultimodalContext(ctx, state.Message, s.config.ContextUnits, s.config.ImageUnits)
	} else {
		text, citations, err = s.retriever.BuildContext(ctx, state.Message, s.config.ContextUnits)
	}
	if err != nil {
		logger.Warn("Context retrieval failed: %v", err)
		return
	}
	state.Context, state.Citations = text, citations
	logger.Debug("Retrieved %d citations", len(citations))
}

// hasEvidence holds when a citation clears the score floor, any context
// was retrieved, or any tool succeeded.
func (s *ChatService) hasEvidence(state *domain.ConversationState) bool {
	for _, c := range state.Citations {
		if c.Score > s.config.MinScore {
			return true
		}
	}
	if strings.TrimSpace(state.Context) != "" {
		return true
	}
	return state.Report != nil && state.Report.AnySucceeded()
}

// contextSlot combines recent memory, retrieved literature and tool output.
func (s *ChatService) contextSlot(state *domain.ConversationState) string {
	var parts []string
	if recent := s.memory.RecentContext(s.config.ContextEntries); recent != "" {
		parts = append(parts, recent)
	}
	if state.Context != "" {
		parts = append(parts, state.Context)
	}
	if state.Report != nil && len(state.Report.Results) > 0 {
		parts = append(parts, toolSection(state.Report))
	}
	if len(parts) == 0 {
		return noContext
	}
	return strings.Join(parts, "\n\n")
}

func toolSection(report *domain.ExecutionReport) string {
	var b strings.Builder
	b.WriteString("TOOL ANALYSIS: ")
	b.WriteString(report.Summary())
	for _, r := range report.Results {
		if !r.Success {
			continue
		}
		name := r.Name
		if name == "" {
			name = string(r.Tool)
		}
		fmt.Fprintf(&b, "\n\n[%s]\n%s", name, domain.Preview(string(r.Payload), maxToolPayloadChars))
	}
	return b.String()
}

// generate asks the model for a complete answer, falling back to the
// apology text.
func (s *ChatService) generate(ctx context.Context, messages []driven.ChatMessage) (string, bool) {
	if s.llm == nil {
		logger.Error("%v", fmt.Errorf("%w: %w", domain.ErrGeneration, domain.ErrLLMUnavailable))
		return s.apology(), false
	}
	if s.config.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.GenerateTimeout)
		defer cancel()
	}

	answer, err := s.llm.Chat(ctx, messages, s.chatOptions())
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errors.New("empty answer")
	}
	if err != nil {
		logger.Error("%v", fmt.Errorf("%w: %w", domain.ErrGeneration, err))
		return s.apology(), false
	}
	return answer, true
}

func (s *ChatService) chatOptions() driven.ChatOptions {
	return driven.ChatOptions{MaxTokens: s.config.MaxTokens, Temperature: s.config.Temperature}
}

func (s *ChatService) apology() string {
	return loadPrompt(s.prompts, driven.PromptErrorMessage)
}

// finish runs the formatting stage and builds the response.
func (s *ChatService) finish(state *domain.ConversationState) *domain.ChatResponse {
	state.Trace = append(state.Trace, domain.StageFormatting)
	resp := &domain.ChatResponse{
		RequestID:      state.RequestID,
		Response:       state.Response,
		Label:          state.Classification.Label,
		Confidence:     state.Classification.Confidence,
		ToolsUsed:      state.ToolsUsed(),
		ToolReport:     state.Report,
		Citations:      state.Citations,
		ContextUsed:    state.Context != "",
		EvidenceBacked: state.Generated && state.HasSufficientEvidence,
		Timestamp:      s.now(),
	}
	if state.Generated && s.llm != nil {
		resp.Model = s.llm.ModelName()
	}
	state.Trace = append(state.Trace, domain.StageDone)
	logger.Debug("Request %s trace: %v", shortHash(state.RequestID), state.Trace)
	return resp
}
