package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/services"
)

var (
	askSession   string
	askDocs      []string
	askJSON      bool
	askSummarize bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Retrieve context for a question",
	Long: `Runs hybrid retrieval for a question and prints the assembled context
with provenance. With --session, the question and a summary of the
retrieved context are recorded so follow-up questions are biased toward
the conversation's topics.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session ID for conversational follow-ups")
	askCmd.Flags().StringSliceVar(&askDocs, "doc", nil, "restrict retrieval to the given document IDs")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the context payload as JSON")
	askCmd.Flags().BoolVar(&askSummarize, "summarize", false, "print an extractive summary of the retrieved context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if queryService == nil {
		return errors.New("query service not configured")
	}

	ctx := context.Background()
	payload, err := queryService.Query(ctx, question, askSession, askDocs)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askSession != "" {
		summary := services.Summarize(payload, services.DefaultSummarySentences)
		if err := queryService.Observe(ctx, askSession, question, summary); err != nil {
			return fmt.Errorf("failed to record session turn: %w", err)
		}
	}

	if askJSON {
		return outputPayloadJSON(cmd, payload)
	}
	return outputPayloadText(cmd, payload)
}

func outputPayloadJSON(cmd *cobra.Command, payload *domain.ContextPayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputPayloadText(cmd *cobra.Command, payload *domain.ContextPayload) error {
	if payload.Degraded {
		cmd.Println("Warning: one index was unavailable; results are partial.")
		cmd.Println()
	}

	if payload.Empty {
		cmd.Println("No relevant context found.")
		return nil
	}

	cmd.Println("Context:")
	cmd.Println()
	for i := range payload.Entries {
		entry := &payload.Entries[i]
		cmd.Printf("  [%d] %s#%d (%.2f)\n", i+1, entry.Filename, entry.Seq, entry.Score)
		cmd.Printf("      %s\n", entry.Text)
		cmd.Println()
	}
	cmd.Printf("Total: %d chunks, %d runes (budget %d)\n", len(payload.Entries), payload.Size, payload.Budget)

	if askSummarize {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Printf("  %s\n", services.Summarize(payload, services.DefaultSummarySentences))
	}

	return nil
}
