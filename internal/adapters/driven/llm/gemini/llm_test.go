package gemini

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/stream"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

type mockGenerator struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    string
	chunks   []string
	err      error
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func (m *mockGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.contents, m.config = contents, config
	if m.err != nil {
		return nil, m.err
	}
	return textResponse(m.reply), nil
}

func (m *mockGenerator) GenerateContentStream(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	m.contents, m.config = contents, config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range m.chunks {
			if !yield(textResponse(c), nil) {
				return
			}
		}
		if m.err != nil {
			yield(nil, m.err)
		}
	}
}

func (m *mockGenerator) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &genai.Model{Name: model}, nil
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(t.Context(), Config{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestChat_MapsRolesAndConfig(t *testing.T) {
	gen := &mockGenerator{reply: "Use ViennaRNA."}
	s := NewWithGenerator(gen, "")
	assert.Equal(t, DefaultModel, s.ModelName())

	out, err := s.Chat(t.Context(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "expert"},
		{Role: driven.RoleUser, Content: "q1"},
		{Role: driven.RoleAssistant, Content: "a1"},
		{Role: driven.RoleUser, Content: "q2"},
	}, driven.ChatOptions{MaxTokens: 200, Temperature: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Use ViennaRNA.", out)

	require.Len(t, gen.contents, 3)
	assert.Equal(t, string(genai.RoleModel), gen.contents[1].Role)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, "expert", gen.config.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(200), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.5, *gen.config.Temperature, 1e-6)
}

func TestGenerate_Error(t *testing.T) {
	s := NewWithGenerator(&mockGenerator{err: errors.New("quota")}, "m")
	_, err := s.Generate(t.Context(), "p", driven.GenerateOptions{Stop: []string{"x"}})
	assert.ErrorContains(t, err, "quota")
}

func TestStream(t *testing.T) {
	s := NewWithGenerator(&mockGenerator{chunks: []string{"Aptamer", "", " binds"}}, "m")
	ch, err := s.Stream(t.Context(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}}, driven.ChatOptions{})
	require.NoError(t, err)

	text, err := stream.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Aptamer binds", text)
}

func TestStream_ErrorIsLast(t *testing.T) {
	s := NewWithGenerator(&mockGenerator{chunks: []string{"part"}, err: errors.New("reset")}, "m")
	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)

	text, err := stream.Collect(ch)
	assert.ErrorContains(t, err, "reset")
	assert.Equal(t, "part", text)
}

func TestPing(t *testing.T) {
	assert.NoError(t, NewWithGenerator(&mockGenerator{}, "m").Ping(t.Context()))
	assert.Error(t, NewWithGenerator(&mockGenerator{err: errors.New("denied")}, "m").Ping(t.Context()))
}
