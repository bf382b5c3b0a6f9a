// Package mcp provides an MCP (Model Context Protocol) server adapter for ribo.
// It lets AI assistants search the literature index, ask the RNA design
// assistant and trigger ingestion.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingChatService is returned when the chat service is not provided.
var ErrMissingChatService = errors.New("mcp: chat service is required")
