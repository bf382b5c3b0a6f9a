package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// defaultSearchK is used when the search tool is called without k.
const defaultSearchK = 10

// errNoIngestion is returned by tools that need the ingestion port.
var errNoIngestion = errors.New("ingestion is not available on this server")

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string `json:"query" jsonschema:"the question or phrase to look up in the literature"`
	K             int    `json:"k,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	IncludeImages bool   `json:"include_images,omitempty" jsonschema:"also search rendered page images"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Location   int     `json:"location"`
	Kind       string  `json:"kind"`
	Score      float64 `json:"score"`
	Content    string  `json:"content,omitempty"`
	ImagePath  string  `json:"image_path,omitempty"`
	Reference  string  `json:"reference"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	Message string      `json:"message" jsonschema:"the question for the RNA design assistant"`
	Files   []FileInput `json:"files,omitempty" jsonschema:"sequence or structure files to analyse"`
}

// FileInput is an attached file.
type FileInput struct {
	Name    string `json:"name" jsonschema:"file name including extension, e.g. seqs.fasta"`
	Content string `json:"content" jsonschema:"file contents"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Response       string            `json:"response"`
	Classification string            `json:"classification"`
	ToolsUsed      []string          `json:"tools_used,omitempty"`
	Citations      []domain.Citation `json:"citations,omitempty"`
	EvidenceBacked bool              `json:"evidence_backed"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Path string `json:"path,omitempty" jsonschema:"file or directory to ingest (default: the data directory)"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// ListDocumentsInput is the (empty) input schema for list_documents.
type ListDocumentsInput struct{}

// ListDocumentsOutput is the output schema for list_documents.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput is one indexed document.
type DocumentOutput struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	TextUnits  int    `json:"text_units"`
	ImageUnits int    `json:"image_units"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed RNA literature",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Ask the RNA design assistant; answers are grounded in the literature and analysis tools",
	}, s.handleChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest",
		Description: "Add PDF, Markdown or text papers to the literature index",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents in the literature index",
	}, s.handleListDocuments)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultSearchK
	}

	opts := domain.SearchOptions{K: k, IncludeImages: input.IncludeImages}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		r := results[i]
		output.Results[i] = SearchResultOutput{
			DocumentID: r.DocumentID,
			Title:      r.Bibliography.DisplayTitle(),
			Source:     r.Source,
			Location:   r.Location,
			Kind:       string(r.Kind),
			Score:      r.Score,
			Content:    r.Content,
			ImagePath:  r.ImagePath,
			Reference:  domain.NewCitation(i+1, r).Reference,
		}
	}

	return nil, output, nil
}

// handleChat runs one non-streaming chat request.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	req := domain.ChatRequest{Message: input.Message}
	for _, f := range input.Files {
		req.UploadedFiles = append(req.UploadedFiles, domain.UploadedFile{Name: f.Name, Content: f.Content})
	}

	resp, err := s.ports.Chat.Chat(ctx, req)
	if err != nil {
		return nil, ChatOutput{}, err
	}

	output := ChatOutput{
		Response:       resp.Response,
		Classification: string(resp.Label),
		Citations:      resp.Citations,
		EvidenceBacked: resp.EvidenceBacked,
	}
	for _, id := range resp.ToolsUsed {
		output.ToolsUsed = append(output.ToolsUsed, string(id))
	}

	return nil, output, nil
}

// handleIngest ingests one file, a directory or the data directory.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, IngestOutput{}, errNoIngestion
	}

	path := input.Path
	if path == "" {
		path = s.ports.DataDir
	}

	if _, ok := domain.FormatFromPath(path); ok {
		_, added, err := s.ports.Ingestion.IngestFile(ctx, path)
		if err != nil {
			return nil, IngestOutput{Failed: []string{path}}, err
		}
		if added {
			return nil, IngestOutput{Added: []string{path}}, nil
		}
		return nil, IngestOutput{Skipped: []string{path}}, nil
	}

	report, err := s.ports.Ingestion.IngestDirectory(ctx, path)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	output := IngestOutput{Added: report.Added, Skipped: report.Skipped}
	for _, f := range report.Failed {
		output.Failed = append(output.Failed, f.Path+": "+f.Error)
	}
	return nil, output, nil
}

// handleListDocuments lists the indexed documents.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.documents(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	return nil, ListDocumentsOutput{Documents: docs, Count: len(docs)}, nil
}

func (s *Server) documents(ctx context.Context) ([]DocumentOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, errNoIngestion
	}
	docs, err := s.ports.Ingestion.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentOutput, len(docs))
	for i, d := range docs {
		out[i] = DocumentOutput{
			ID:         d.ID,
			Title:      d.Title,
			Source:     d.SourcePath,
			TextUnits:  d.TextUnits,
			ImageUnits: d.ImageUnits,
		}
	}
	return out, nil
}
