// Package cmd defines and implements the CLI commands for the idxetl
// executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// newRunCmd creates the 'run' subcommand: one full pipeline pass for a
// single business date.
func newRunCmd() *cobra.Command {
	var dateFlag string
	var scheduled bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one business date",
		Long: `Fetches the disclosure document for the given date (or the latest
scheduled business date when omitted), extracts and normalizes its
ownership table, and writes the partitioned CSV dataset to the sink.

With --scheduled the run targets the previous trading session, the date
a nightly cron invocation should process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingleDate(cmd, dateFlag, scheduled, etl.PhaseFull)
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "business date (YYYY-MM-DD), defaults to the latest scheduled date")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "target the previous trading session")
	cmd.MarkFlagsMutuallyExclusive("date", "scheduled")
	return cmd
}

// runSingleDate executes one phase for one date and maps the outcome to
// the process exit status. An unpublished day exits cleanly.
func runSingleDate(cmd *cobra.Command, dateFlag string, scheduled bool, phase etl.Phase) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	date, err := resolveDate(dateFlag, scheduled, appInstance.GetClock())
	if err != nil {
		return err
	}

	outcome := appInstance.GetRunner().Run(cmd.Context(), date, phase)
	if outcome.Kind == etl.OutcomeFailed {
		return fmt.Errorf("run for %s failed at %s: %s", outcome.Date, outcome.Stage, outcome.Err)
	}

	appInstance.GetLogger().Info("Run command finished.",
		zap.String("date", outcome.Date.String()),
		zap.String("outcome", string(outcome.Kind)))
	return nil
}
