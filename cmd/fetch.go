package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// newFetchCmd creates the 'fetch' subcommand: download only, no parsing.
func newFetchCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the raw disclosure PDF for one business date",
		Long: `Downloads the disclosure attachment for the given date and stores the
raw PDF in the sink's raw prefix and the local download directory,
without parsing it. Pair with 'parse' to split a backfill into a polite
serial download pass and a parallel parsing pass.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingleDate(cmd, dateFlag, false, etl.PhaseFetch)
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "business date (YYYY-MM-DD), defaults to the latest scheduled date")
	return cmd
}
