// Command ribo is a literature-grounded assistant for RNA design.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/cli"
	"github.com/givemeone1astkiss/ribo/internal/app"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetLoaders(loadSettings, loadServices)

	if err := cli.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func loadSettings(configDir string) (driving.SettingsService, error) {
	return app.LoadSettings(configDir)
}

func loadServices(ctx context.Context, configDir string) (*cli.Services, error) {
	settings, err := app.LoadSettings(configDir)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, settings, configDir)
	if err != nil {
		return nil, fmt.Errorf("starting ribo: %w", err)
	}

	return &cli.Services{
		Settings:  a.Settings,
		Search:    a.Search,
		Chat:      a.Chat,
		Ingestion: a.Ingestion,
		Memory:    a.Memory,
		Tools:     a.Tools,
		DataDir:   a.Config.Ingest.DataDir,
		Warnings:  a.Warnings,
		Close:     a.Close,
	}, nil
}
