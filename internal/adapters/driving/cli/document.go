package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

var documentJSON bool

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"documents", "docs"},
	Short:   "Manage indexed documents",
	Long:    `List, remove and check the documents in the literature index.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove [source-path]",
	Short: "Remove a document and its units from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRemove,
}

var documentStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runDocumentStats,
}

var documentImagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List stored page images with their captions and OCR text",
	Args:  cobra.NoArgs,
	RunE:  runDocumentImages,
}

var documentCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare the document registry with the vector index",
	Long: `Reports documents whose units are missing from the vector index,
units with no registered document, and unit count mismatches.`,
	Args: cobra.NoArgs,
	RunE: runDocumentCheck,
}

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output documents as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	documentCmd.AddCommand(documentStatsCmd)
	documentCmd.AddCommand(documentImagesCmd)
	documentCmd.AddCommand(documentCheckCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	docs, err := ingestionService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed. Run 'ribo ingest' to add papers.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].Title)
		cmd.Printf("    ID:       %s\n", shortID(docs[i].ID))
		cmd.Printf("    Source:   %s\n", docs[i].SourcePath)
		cmd.Printf("    Units:    %d text, %d image\n", docs[i].TextUnits, docs[i].ImageUnits)
		cmd.Printf("    Ingested: %s\n", docs[i].IngestedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	if err := ingestionService.Remove(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Removed: %s\n", args[0])
	return nil
}

func runDocumentStats(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	stats, err := ingestionService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	cmd.Println("[Index]")
	cmd.Printf("  Backend:      %s\n", stats.Backend)
	cmd.Printf("  Embedding:    %s\n", stats.EmbeddingModel)
	cmd.Printf("  Data dir:     %s\n", stats.DataDir)
	cmd.Printf("  Documents:    %d\n", stats.Documents)
	cmd.Printf("  Text units:   %d\n", stats.TextUnits)
	cmd.Printf("  Image units:  %d\n", stats.ImageUnits)
	if stats.Indexing {
		cmd.Println("  Status:       indexing")
	} else {
		cmd.Println("  Status:       idle")
	}
	return nil
}

func runDocumentImages(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	images, err := ingestionService.ListImages(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	if len(images) == 0 {
		cmd.Println("No page images stored.")
		return nil
	}

	for _, img := range images {
		cmd.Printf("  %s, page %d\n", img.Source, img.Page)
		cmd.Printf("    Document: %s\n", shortID(img.DocumentID))
		cmd.Printf("    Image:    %s\n", img.ImagePath)
		cmd.Printf("    Caption:  %s\n", img.Description)
		if img.OCRText != "" {
			cmd.Printf("    OCR:      %s\n", domain.Preview(img.OCRText, 80))
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d images\n", len(images))
	return nil
}

func runDocumentCheck(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errNotConfigured("ingestion")
	}

	issues, err := ingestionService.CheckConsistency(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	if len(issues) == 0 {
		cmd.Println("Index is consistent.")
		return nil
	}

	for _, in := range issues {
		cmd.Printf("  %-16s %s  %s: expected %d, found %d\n",
			in.Kind, shortID(in.DocumentID), in.Collection, in.Expected, in.Actual)
	}
	return fmt.Errorf("%d inconsistencies found", len(issues))
}

// shortID abbreviates a content hash for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
