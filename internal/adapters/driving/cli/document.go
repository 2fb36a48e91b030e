package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/services"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
	Long:  `List, inspect, classify, compare, or drop ingested documents.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDropCmd = &cobra.Command{
	Use:   "drop [doc-id]",
	Short: "Remove a document from the stores and both indexes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDrop,
}

var documentsClassifyCmd = &cobra.Command{
	Use:   "classify [doc-id]",
	Short: "Guess a document's type from its vocabulary",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsClassify,
}

var documentsCompareCmd = &cobra.Command{
	Use:   "compare [doc-id] [doc-id]",
	Short: "Compare the vocabulary of two documents",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsCompare,
}

func init() {
	documentsListCmd.Flags().BoolVar(&documentsJSON, "json", false, "output documents as JSON")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDropCmd)
	documentsCmd.AddCommand(documentsClassifyCmd)
	documentsCmd.AddCommand(documentsCompareCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	stats, err := ingestService.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(stats) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range stats {
		doc := &stats[i].Document
		cmd.Printf("  %s\n", doc.ID)
		cmd.Printf("    File:    %s\n", doc.Filename)
		cmd.Printf("    Status:  %s\n", doc.Status)
		cmd.Printf("    Chunks:  %d\n", stats[i].ChunkCount)
		cmd.Printf("    Created: %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(stats))
	return nil
}

func runDocumentsDrop(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	if err := ingestService.DropDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to drop document: %w", err)
	}

	cmd.Printf("Document %s dropped.\n", docID)
	return nil
}

func runDocumentsClassify(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := ingestService.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	result := services.Classify(doc.Content)
	cmd.Printf("Document %s\n\n", doc.ID)
	cmd.Printf("  Type: %s\n", result.DocType)
	if len(result.Tags) > 0 {
		cmd.Printf("  Tags: %s\n", strings.Join(result.Tags, ", "))
	}
	return nil
}

func runDocumentsCompare(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	docA, err := ingestService.GetDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	docB, err := ingestService.GetDocument(ctx, args[1])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmp := services.Compare(docA.Content, docB.Content)
	cmd.Printf("Comparing %s and %s\n\n", docA.ID, docB.ID)
	cmd.Printf("  Similarity: %.2f\n", cmp.Similarity)
	if len(cmp.Shared) > 0 {
		cmd.Printf("  Shared:     %s\n", strings.Join(cmp.Shared, ", "))
	}
	if len(cmp.OnlyA) > 0 {
		cmd.Printf("  Only %s: %s\n", docA.ID, strings.Join(cmp.OnlyA, ", "))
	}
	if len(cmp.OnlyB) > 0 {
		cmd.Printf("  Only %s: %s\n", docB.ID, strings.Join(cmp.OnlyB, ", "))
	}
	return nil
}
