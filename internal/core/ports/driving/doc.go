// Package driving declares the operations the CLI, HTTP API, MCP server
// and TUI invoke on the assistant. internal/core/services implements them.
package driving
