// Package cli is the command-line driving adapter. Commands reach the core
// only through driving ports, which main injects via SetLoaders.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// Command annotations read by setup.
const (
	// skipServices marks commands that only need the settings service.
	skipServices = "ribo/skip-services"
	// serverCommand marks long-running servers, which log at info.
	serverCommand = "ribo/server"
)

// version is set at build time.
var version = "dev"

// Driving ports used by the commands. Set by the loaders before RunE.
var (
	settingsService  driving.SettingsService
	searchService    driving.SearchService
	chatService      driving.ChatService
	ingestionService driving.IngestionService
	memoryService    driving.MemoryService
	toolCatalog      driving.ToolCatalog
	dataDir          string
)

// Services are the driving ports one command run can use.
type Services struct {
	Settings  driving.SettingsService
	Search    driving.SearchService
	Chat      driving.ChatService
	Ingestion driving.IngestionService
	Memory    driving.MemoryService
	Tools     driving.ToolCatalog
	DataDir   string

	// Warnings are printed once at startup.
	Warnings []string

	// Close releases the services. May be nil.
	Close func() error
}

// SettingsLoader opens only the settings service.
type SettingsLoader func(configDir string) (driving.SettingsService, error)

// Loader builds every service from the settings in configDir.
type Loader func(ctx context.Context, configDir string) (*Services, error)

var (
	settingsLoader SettingsLoader
	servicesLoader Loader
	closeServices  func() error
)

var (
	verbose   bool
	logLevel  string
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "ribo",
	Short: "RNA design assistant grounded in the literature",
	Long: `ribo answers RNA design questions from an indexed library of papers.

It classifies each question, retrieves supporting passages and page images,
runs structure prediction and design tools when the question calls for them,
and cites the papers it used.

Start with:
  ribo ingest            index the papers in the data directory
  ribo chat "question"   ask a question
  ribo tui               open the interactive interface
  ribo serve             run the HTTP API`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.ribo)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetLoaders injects the functions that build the driving ports.
func SetLoaders(settings SettingsLoader, services Loader) {
	settingsLoader = settings
	servicesLoader = services
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to every command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := configureLogging(cmd); err != nil {
		return err
	}

	// 1. Settings are always available so a broken config can be repaired.
	if settingsLoader != nil {
		svc, err := settingsLoader(configDir)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		settingsService = svc
	}

	if servicesLoader == nil || skipsServices(cmd) {
		return nil
	}

	// 2. Everything else, built from those settings.
	services, err := servicesLoader(commandContext(cmd), configDir)
	if err != nil {
		return err
	}
	useServices(services)
	for _, w := range services.Warnings {
		logger.Warn("%s", w)
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

func useServices(s *Services) {
	if s.Settings != nil {
		settingsService = s.Settings
	}
	searchService = s.Search
	chatService = s.Chat
	ingestionService = s.Ingestion
	memoryService = s.Memory
	toolCatalog = s.Tools
	dataDir = s.DataDir
	closeServices = s.Close
}

// configureLogging applies --log-level, then --verbose. Long-running
// servers default to info so requests are visible.
func configureLogging(cmd *cobra.Command) error {
	switch {
	case logLevel != "":
		lvl, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(lvl)
	case verbose:
		logger.SetVerbose(true)
	case isServer(cmd):
		logger.SetLevel(slog.LevelInfo)
	default:
		logger.SetLevel(slog.LevelWarn)
	}
	return nil
}

func isServer(cmd *cobra.Command) bool {
	return cmd.Annotations[serverCommand] == "true"
}

func skipsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipServices] == "true" {
			return true
		}
	}
	return false
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// errNotConfigured builds the error returned when a port was not injected.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
