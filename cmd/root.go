package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/app"
	"github.com/adiwardana/idx-shareholder-etl/internal/clock/exchange"
	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
	"github.com/adiwardana/idx-shareholder-etl/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows
// injecting a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() etl.Config
	GetClock() *exchange.Clock
	GetRunner() *etl.Runner
}

// newApp is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idxetl",
		Short: "Daily shareholder-disclosure ETL for the Indonesia Stock Exchange.",
		Long: `idxetl fetches the daily "Pemegang Saham di atas 5%" disclosure
published by the Indonesia Stock Exchange, extracts its ownership table,
and writes a date-partitioned CSV dataset to object storage.`,

		// Runs after config is loaded but before the subcommand's RunE,
		// so every subcommand finds a fully wired application in its
		// context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logging.InitLogger(viper.GetBool("logging.development"))

			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.idxetl/config.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newBackfillCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger(false)

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// resolveDate parses an explicit --date flag, targets the previous
// trading session for --scheduled invocations, or falls back to the
// latest scheduled business date on the exchange calendar.
func resolveDate(flag string, scheduled bool, clock *exchange.Clock) (etl.BusinessDate, error) {
	if flag != "" {
		date, err := etl.ParseBusinessDate(flag)
		if err != nil {
			return etl.BusinessDate{}, err
		}
		return date, nil
	}
	if scheduled {
		return etl.PreviousSession(clock.Now()), nil
	}
	return etl.ResolveBusinessDate(clock.Now()), nil
}
