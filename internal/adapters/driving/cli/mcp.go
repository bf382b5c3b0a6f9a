package cli

import (
	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/mcp"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose ribo to MCP clients",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run a Model Context Protocol server offering the search, chat, ingest
and list_documents tools plus ribo:// resources for the indexed literature.

JSON-RPC is spoken over stdin/stdout unless --http is given, in which case
the streamable HTTP transport is served on that address instead.

  ribo mcp serve
  ribo mcp serve --http 127.0.0.1:8765

A desktop client entry looks like:

  "ribo": {"command": "/usr/local/bin/ribo", "args": ["mcp", "serve"]}`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{serverCommand: "true"},
	RunE:        runMCPServe,
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve HTTP on this address instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Search:    searchService,
		Chat:      chatService,
		Ingestion: ingestionService,
		Tools:     toolCatalog,
		DataDir:   dataDir,
		Version:   version,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if mcpHTTPAddr == "" {
		return server.Run(ctx)
	}
	// stdout stays quiet in stdio mode; over HTTP the address goes to the log.
	logger.Info("mcp server listening on %s", mcpHTTPAddr)
	return server.RunHTTP(ctx, mcpHTTPAddr)
}
