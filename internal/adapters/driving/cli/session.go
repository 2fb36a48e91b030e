package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Clear a session's conversation state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionReset,
}

func init() {
	sessionCmd.AddCommand(sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	sessionID := args[0]
	ctx := context.Background()

	if err := queryService.DropSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	cmd.Printf("Session %s cleared.\n", sessionID)
	return nil
}
