package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Open the interactive terminal user interface: chat with the assistant,
search the literature and manage indexed documents from one screen.

Controls:
` + keymap.DefaultKeyMap().Controls(),
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func tuiPorts() *tui.Ports {
	ports := tui.NewPorts(chatService, searchService)
	ports.Ingestion = ingestionService
	ports.Memory = memoryService
	ports.DataDir = dataDir
	return ports
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "tui panic: %v\n%s\n", r, debug.Stack())
			err = fmt.Errorf("tui panic: %v", r)
		}
	}()

	app, err := tui.NewApp(tuiPorts())
	if err != nil {
		return fmt.Errorf("start tui: %w", err)
	}
	return app.WithContext(commandContext(cmd)).Run()
}
