package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/api"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/watch"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API used by web front ends.

Routes:
  POST /api/chat            answer a question (SSE when "stream": true)
  POST /api/chat/cancel     cancel a streaming request
  POST /api/search          search the literature
  POST /api/ingest          ingest the data directory
  GET  /api/documents       list indexed documents
  GET  /api/tools           list analysis tools
  GET  /api/memory          show conversation memory

Use --watch to re-index the data directory as files change.`,
	Annotations: map[string]string{serverCommand: "true"},
	Args:        cobra.NoArgs,
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "watch the data directory and re-index on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := api.NewServer(&api.Ports{
		Chat:      chatService,
		Search:    searchService,
		Ingestion: ingestionService,
		Tools:     toolCatalog,
		Memory:    memoryService,
		DataDir:   dataDir,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			addr = s.Server.Addr
		}
	}
	if addr == "" {
		return errors.New("no listen address: pass --addr or set server.addr")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, addr)
	})

	switch {
	case !serveWatch:
	case ingestionService == nil || dataDir == "":
		logger.Warn("--watch ignored: ingestion is not configured")
	default:
		g.Go(func() error {
			return watch.New(dataDir, ingestionService).Run(ctx)
		})
	}

	return g.Wait()
}
