package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Services are injected by main before Execute.
var (
	ingestService driving.IngestService
	queryService  driving.QueryService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over your own documents",
	Long: `docqa ingests extracted document text and answers questions against it.
Retrieval combines keyword (BM25) and semantic (vector) search, and the
assembled context carries provenance for citation.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetServices injects the application services. Must be called before
// Execute.
func SetServices(ingest driving.IngestService, query driving.QueryService) {
	ingestService = ingest
	queryService = query
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
