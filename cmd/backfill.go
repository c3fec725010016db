package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
)

// newBackfillCmd creates the 'backfill' subcommand: run the pipeline
// over a historical date range with bounded concurrency.
func newBackfillCmd() *cobra.Command {
	var (
		startFlag   string
		endFlag     string
		phaseFlag   string
		workersFlag int64
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run the pipeline over a historical date range",
		Long: `Enumerates every date between --start and --end inclusive and runs the
pipeline for each, with at most --workers dates in flight at once.
Weekends and holidays come back as not published; failed dates are
reported at the end and never stop the other dates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfill(cmd, startFlag, endFlag, phaseFlag, workersFlag)
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "first business date (YYYY-MM-DD), required")
	cmd.Flags().StringVar(&endFlag, "end", "", "last business date (YYYY-MM-DD), required")
	cmd.Flags().StringVar(&phaseFlag, "phase", string(etl.PhaseFull), "pipeline phase to run: full, fetch, or parse")
	cmd.Flags().Int64Var(&workersFlag, "workers", 0, "max concurrent dates (defaults to backfill.workers)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runBackfill(cmd *cobra.Command, startFlag, endFlag, phaseFlag string, workersFlag int64) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	start, err := etl.ParseBusinessDate(startFlag)
	if err != nil {
		return err
	}
	end, err := etl.ParseBusinessDate(endFlag)
	if err != nil {
		return err
	}
	if start.After(end) {
		return fmt.Errorf("start date %s is after end date %s", start, end)
	}
	phase, err := etl.ParsePhase(phaseFlag)
	if err != nil {
		return err
	}

	workers := workersFlag
	if workers <= 0 {
		workers = appInstance.GetConfig().Workers
	}

	runner := appInstance.GetRunner()
	coordinator, err := etl.NewCoordinator(
		func(ctx context.Context, date etl.BusinessDate) etl.RunOutcome {
			return runner.Run(ctx, date, phase)
		},
		workers,
		logger.Named("backfill"),
	)
	if err != nil {
		return err
	}

	dates := etl.DatesBetween(start, end)
	outcomes := coordinator.Backfill(cmd.Context(), dates)

	succeeded, notPublished, failed := etl.Summarize(outcomes)
	logger.Info("Backfill command finished.",
		zap.Int("succeeded", succeeded),
		zap.Int("not_published", notPublished),
		zap.Int("failed", failed))

	for date, outcome := range outcomes {
		if outcome.Kind == etl.OutcomeFailed {
			logger.Error("Backfill date failed",
				zap.String("date", date.String()),
				zap.String("stage", string(outcome.Stage)),
				zap.String("error", outcome.Err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("backfill completed with %d failed dates", failed)
	}
	return nil
}
