package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/watch"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

var (
	ingestDir   string
	ingestWatch bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index papers into the literature library",
	Long: `Index PDF, Markdown and text papers.

With no path, --dir or the configured data directory is ingested. A file path
ingests that file; a directory is walked recursively. Unchanged files are
skipped, changed files replace their previous version.

Use --watch to keep running and re-index files as they change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestDir, "dir", "d", "", "directory to ingest (default from settings)")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch the directory and re-index on change")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	path := dataDir
	if ingestDir != "" {
		path = ingestDir
	}
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no path given and no data directory configured")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	ctx := commandContext(cmd)

	if !info.IsDir() {
		if ingestWatch {
			return fmt.Errorf("--watch needs a directory, got %s", path)
		}
		doc, added, err := ingestionService.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		if !added {
			cmd.Printf("Unchanged: %s\n", path)
			return nil
		}
		cmd.Printf("Added: %s (%d text units, %d image units)\n", doc.DisplayTitle(), doc.TextUnits, doc.ImageUnits)
		return nil
	}

	cmd.Printf("Ingesting %s...\n", path)
	report, err := ingestionService.IngestDirectory(ctx, path)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printIngestReport(cmd, report)

	if !ingestWatch {
		return nil
	}

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", path)
	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch.New(path, ingestionService).Run(watchCtx)
}

func printIngestReport(cmd *cobra.Command, report *driving.IngestReport) {
	cmd.Printf("Added %d, skipped %d, failed %d in %s\n",
		len(report.Added), len(report.Skipped), len(report.Failed), report.Duration.Round(time.Millisecond))
	for _, p := range report.Added {
		logger.Debug("added %s", p)
		cmd.Printf("  + %s\n", p)
	}
	for _, f := range report.Failed {
		cmd.PrintErrf("  ! %s: %s\n", f.Path, f.Error)
	}
}
