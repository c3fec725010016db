// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/clock/exchange"
	"github.com/adiwardana/idx-shareholder-etl/internal/clock/system"
	"github.com/adiwardana/idx-shareholder-etl/internal/dataset"
	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
	"github.com/adiwardana/idx-shareholder-etl/internal/extract"
	"github.com/adiwardana/idx-shareholder-etl/internal/fetch"
	"github.com/adiwardana/idx-shareholder-etl/internal/history"
	"github.com/adiwardana/idx-shareholder-etl/internal/id/uuid"
	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
	"github.com/adiwardana/idx-shareholder-etl/internal/metrics"
	"github.com/adiwardana/idx-shareholder-etl/internal/normalize"
	"github.com/adiwardana/idx-shareholder-etl/internal/notify"
	"github.com/adiwardana/idx-shareholder-etl/internal/storage"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands that need
// it via the command context.
type App struct {
	logger   *zap.Logger
	cfg      etl.Config
	sink     storage.Provider
	history  history.Provider
	notifier notify.Provider
	clock    *exchange.Clock
	runner   *etl.Runner
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// GetConfig returns the pipeline configuration.
func (a *App) GetConfig() etl.Config { return a.cfg }

// GetSink exposes the configured dataset sink.
func (a *App) GetSink() storage.Provider { return a.sink }

// GetClock returns the exchange-local clock.
func (a *App) GetClock() *exchange.Clock { return a.clock }

// GetRunner returns the wired pipeline runner.
func (a *App) GetRunner() *etl.Runner { return a.runner }

// NewApp creates and initializes a new App from the application's
// configuration. It is the central point for service initialization and
// fails fast if any critical service cannot be set up.
func NewApp(ctx context.Context) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")

	metrics.Init()

	cfg, err := etl.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}

	sink, err := newSink(ctx, l)
	if err != nil {
		return nil, err
	}
	hist, err := newHistory(ctx, l)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(ctx, l)
	if err != nil {
		return nil, err
	}

	fetchCfg, err := fetch.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load fetch config: %w", err)
	}
	fetcher, err := fetch.New(fetchCfg, l.Named("fetch"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}

	clk, err := exchange.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange time zone: %w", err)
	}

	runner := etl.NewRunner(cfg, etl.Deps{
		Fetcher:    fetcher,
		Extractor:  extract.New(extract.Config{SkipCoverPage: true}, l.Named("extract")),
		Normalizer: normalize.New(normalize.Config{}, l.Named("normalize")),
		Assembler:  dataset.CSVAssembler{},
		Sink:       sink,
		Notifier:   notifier,
		History:    hist,
		Retry:      etl.NewRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		Clock:      system.New(),
		IDs:        uuid.New(),
		Logger:     l.Named("runner"),
	})

	l.Info("Application services initialized successfully.")

	return &App{
		logger:   l,
		cfg:      cfg,
		sink:     sink,
		history:  hist,
		notifier: notifier,
		clock:    clk,
		runner:   runner,
	}, nil
}

func newSink(ctx context.Context, l *zap.Logger) (storage.Provider, error) {
	switch provider := viper.GetString("storage.provider"); provider {
	case "gcs":
		bucketName := viper.GetString("storage.gcs.bucket_name")
		if bucketName == "" {
			return nil, fmt.Errorf("storage provider is 'gcs' but storage.gcs.bucket_name is not set")
		}
		l.Info("Using GCS storage provider", zap.String("bucket", bucketName))
		sink, err := storage.NewGCSProvider(ctx, bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return sink, nil
	case "local":
		root := viper.GetString("storage.local.root")
		if root == "" {
			return nil, fmt.Errorf("storage provider is 'local' but storage.local.root is not set")
		}
		l.Info("Using local filesystem storage provider", zap.String("root", root))
		sink, err := storage.NewLocalProvider(root)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return sink, nil
	case "noop":
		l.Info("Using No-Op storage provider. Datasets will be discarded.")
		return &storage.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}

func newHistory(ctx context.Context, l *zap.Logger) (history.Provider, error) {
	switch provider := viper.GetString("history.provider"); provider {
	case "postgres":
		dsn := viper.GetString("history.postgres.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("history provider is 'postgres' but history.postgres.dsn is not set")
		}
		l.Info("Connecting to PostgreSQL...")
		hist, err := history.NewPostgresProvider(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		return hist, nil
	case "noop":
		l.Info("Using No-Op history provider. Run records will be discarded.")
		return &history.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown history provider: %s", provider)
	}
}

func newNotifier(ctx context.Context, l *zap.Logger) (notify.Provider, error) {
	switch provider := viper.GetString("notify.provider"); provider {
	case "pubsub":
		projectID := viper.GetString("notify.gcp.project_id")
		topicID := viper.GetString("notify.gcp.topic_id")
		if projectID == "" || topicID == "" {
			return nil, fmt.Errorf("notify provider is 'pubsub' but project_id or topic_id is not set")
		}
		l.Info("Connecting to GCP Pub/Sub", zap.String("topic", topicID))
		notifier, err := notify.NewPubSubProvider(ctx, projectID, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notifier: %w", err)
		}
		return notifier, nil
	case "noop":
		l.Info("Using No-Op notify provider. No messages will be sent.")
		return &notify.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", provider)
	}
}

// Close gracefully shuts down all services in the App container. It is
// called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	if err := a.history.Close(); err != nil {
		a.logger.Warn("Error closing history store", zap.Error(err))
	}
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("Error closing notifier", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr sync fails on some platforms.
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
