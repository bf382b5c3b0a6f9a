package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

func TestCatalog_EmbeddedCoversEveryTool(t *testing.T) {
	descs, err := NewCatalog("").Load()
	require.NoError(t, err)
	require.Len(t, descs, len(domain.AllToolIDs()))

	byID := make(map[domain.ToolID]domain.ToolDescriptor)
	for _, d := range descs {
		byID[d.ID] = d
	}
	for _, id := range domain.AllToolIDs() {
		d, ok := byID[id]
		require.True(t, ok, id)
		assert.Equal(t, "/api/"+string(id)+"/predict", d.Endpoint)
		assert.NotEmpty(t, d.DisplayName)
		assert.NotEmpty(t, d.Category)
	}

	assert.Equal(t, []string{"rna_sequence"}, byID[domain.ToolReformer].RequiredInputs)
	assert.Equal(t, []string{"mmcif"}, byID[domain.ToolRNAmigos2].RequiredInputs)
	assert.True(t, byID[domain.ToolBPFold].Accepts("fasta"))
	assert.Equal(t, domain.CategoryDeNovoDesign, byID[domain.ToolRNAMPNN].Category)
}

func TestCatalog_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - id: bpfold
    name: BPFold (GPU)
    endpoint: /v2/bpfold
    input_types: [fasta]
    category: structure_prediction
`), 0o600))

	descs, err := NewCatalog(path).Load()
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "BPFold (GPU)", descs[0].DisplayName)
	assert.Equal(t, "/v2/bpfold", descs[0].Endpoint)
}

func TestCatalog_MissingFile(t *testing.T) {
	_, err := NewCatalog(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown id", "tools:\n  - id: alphafold\n    endpoint: /x\n"},
		{"duplicate", "tools:\n  - id: ufold\n    endpoint: /x\n  - id: ufold\n    endpoint: /y\n"},
		{"no endpoint", "tools:\n  - id: ufold\n"},
		{"bad yaml", "tools: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func newInvoker(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*HTTPInvoker, domain.ToolDescriptor) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	inv := NewHTTPInvoker(Config{BaseURL: srv.URL + "/", Timeout: timeout, RatePerSecond: -1})
	return inv, domain.ToolDescriptor{ID: domain.ToolBPFold, DisplayName: "BPFold", Endpoint: "/api/bpfold/predict"}
}

func TestInvoke_Success(t *testing.T) {
	inv, tool := newInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bpfold/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "dbn", payload["output_format"])

		_, _ = fmt.Fprint(w, `{"success":true,"structures":["((..))"]}`)
	}, time.Second)

	out, err := inv.Invoke(t.Context(), tool, map[string]any{"sequences": []string{"GGAUCC"}, "output_format": "dbn"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"structures":["((..))"]}`, string(out))
}

func TestInvoke_DefaultEndpoint(t *testing.T) {
	inv, _ := newInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ufold/predict", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"ok":1}`)
	}, time.Second)

	_, err := inv.Invoke(t.Context(), domain.ToolDescriptor{ID: domain.ToolUFold}, nil)
	require.NoError(t, err)
}

func TestInvoke_ReportedFailure(t *testing.T) {
	inv, tool := newInvoker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"success":false,"error":"sequence too long"}`)
	}, time.Second)

	_, err := inv.Invoke(t.Context(), tool, map[string]any{})
	assert.ErrorIs(t, err, domain.ErrToolInvocation)
	assert.EqualError(t, err, "sequence too long")
}

func TestInvoke_HTTPStatus(t *testing.T) {
	inv, tool := newInvoker(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprint(w, "model not loaded\n")
	}, time.Second)

	_, err := inv.Invoke(t.Context(), tool, map[string]any{})
	assert.ErrorIs(t, err, domain.ErrToolInvocation)
	assert.EqualError(t, err, "HTTP 500: model not loaded")
}

func TestInvoke_Timeout(t *testing.T) {
	release := make(chan struct{})
	inv, tool := newInvoker(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := inv.Invoke(t.Context(), tool, map[string]any{})
	assert.ErrorIs(t, err, domain.ErrToolInvocation)
	assert.EqualError(t, err, timeoutMessage)
}

func TestInvoke_NonJSONBodyIsQuoted(t *testing.T) {
	inv, tool := newInvoker(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, ">seq\nAUGC")
	}, time.Second)

	out, err := inv.Invoke(t.Context(), tool, nil)
	require.NoError(t, err)
	var s string
	require.NoError(t, json.Unmarshal(out, &s))
	assert.Equal(t, ">seq\nAUGC", s)
}

func TestNewHTTPInvoker_Defaults(t *testing.T) {
	inv := NewHTTPInvoker(Config{})
	assert.Equal(t, DefaultBaseURL, inv.baseURL)
	assert.Equal(t, DefaultTimeout, inv.timeout)
	assert.InDelta(t, DefaultRatePerSecond, float64(inv.limiter.Limit()), 1e-9)
}
