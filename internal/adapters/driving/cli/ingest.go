package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest text files into the index",
	Long: `Reads extracted text files, segments them into chunks and indexes
each document in both the vector and keyword indexes. A document only
becomes queryable once both indexes hold all of its chunks; a failed
document is rolled back without affecting the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output statuses as JSON")
	rootCmd.AddCommand(ingestCmd)
}

// blankLine separates the extracted text blocks within a file.
var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	requests := make([]driving.IngestRequest, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		filename := filepath.Base(path)
		requests = append(requests, driving.IngestRequest{
			DocumentID: documentIDFor(filename),
			Filename:   filename,
			Blocks:     splitBlocks(string(data)),
		})
	}

	ctx := context.Background()
	statuses := ingestService.IngestAll(ctx, requests)

	if ingestJSON {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal statuses: %w", err)
		}
		cmd.Println(string(data))
	} else {
		cmd.Printf("Ingested %d document(s):\n\n", len(statuses))
		ids := make([]string, 0, len(statuses))
		for id := range statuses {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			cmd.Printf("  %s: %s\n", id, statuses[id])
		}
	}

	failed := 0
	for _, status := range statuses {
		if status != domain.StatusReady {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", failed, len(statuses))
	}
	return nil
}

// documentIDFor derives a stable document ID from the file name.
func documentIDFor(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// splitBlocks splits file content into text blocks on blank lines.
func splitBlocks(content string) []string {
	parts := blankLine.Split(content, -1)
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			blocks = append(blocks, part)
		}
	}
	return blocks
}
