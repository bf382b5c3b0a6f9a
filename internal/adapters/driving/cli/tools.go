package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the RNA analysis tool catalog",
	Long: `List the external structure prediction, interaction prediction and
design tools the assistant can call, with the inputs each one accepts.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the RNA analysis tools",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	toolsCmd.PersistentFlags().BoolVar(&toolsJSON, "json", false, "output the catalog as JSON")
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, _ []string) error {
	if toolCatalog == nil {
		return errNotConfigured("tool catalog")
	}

	tools := toolCatalog.List()

	if toolsJSON {
		data, err := json.MarshalIndent(tools, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal tools: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	var category domain.ToolCategory
	for _, t := range tools {
		if t.Category != category {
			category = t.Category
			cmd.Printf("[%s]\n", category)
		}
		cmd.Printf("  %-14s %s\n", t.ID, t.DisplayName)
		if t.Description != "" {
			cmd.Printf("  %-14s %s\n", "", t.Description)
		}
		cmd.Printf("  %-14s inputs: %s\n", "", strings.Join(t.InputTypes, ", "))
	}
	return nil
}
