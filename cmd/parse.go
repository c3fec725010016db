package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// newParseCmd creates the 'parse' subcommand: process a previously
// downloaded PDF without touching the network.
func newParseCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a previously downloaded disclosure PDF",
		Long: `Reads the disclosure PDF for the given date from the local download
directory, extracts and normalizes its ownership table, and writes the
partitioned CSV dataset to the sink. Use 'fetch' first to populate the
download directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingleDate(cmd, dateFlag, false, etl.PhaseParse)
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "business date (YYYY-MM-DD), defaults to the latest scheduled date")
	return cmd
}
