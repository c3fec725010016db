// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/adiwardana/idx-shareholder-etl/internal/app"
	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
	"github.com/adiwardana/idx-shareholder-etl/internal/storage"
)

func TestMain(m *testing.M) {
	logging.InitLogger(false)
	m.Run()
}

// setupTest configures Viper with noop providers and the minimum
// pipeline settings for a clean test environment.
func setupTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.Set("storage.provider", "noop")
	viper.Set("history.provider", "noop")
	viper.Set("notify.provider", "noop")
	viper.Set("fetch.transport", "direct")
	viper.Set("fetch.base_url", "https://www.idx.co.id/primary/NewsAnnouncement/GetAnnouncement")
	viper.Set("etl.dataset_prefix", "datasets/full")
	viper.Set("etl.changes_prefix", "datasets/changes")
	viper.Set("backfill.workers", 2)
	t.Cleanup(viper.Reset)
}

func TestNewApp_NoopProviders(t *testing.T) {
	setupTest(t)

	a, err := app.NewApp(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)

	require.NotNil(t, a.GetLogger())
	require.NotNil(t, a.GetRunner())
	require.NotNil(t, a.GetClock())
	require.IsType(t, &storage.NoOpProvider{}, a.GetSink())
	require.Equal(t, "datasets/full", a.GetConfig().DatasetPrefix)

	a.Close()
}

func TestNewApp_LocalStorage(t *testing.T) {
	setupTest(t)
	viper.Set("storage.provider", "local")
	viper.Set("storage.local.root", t.TempDir())

	a, err := app.NewApp(context.Background())
	require.NoError(t, err)
	require.IsType(t, &storage.LocalProvider{}, a.GetSink())
	a.Close()
}

func TestNewApp_UnknownStorageProvider(t *testing.T) {
	setupTest(t)
	viper.Set("storage.provider", "floppy")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown storage provider")
}

func TestNewApp_GCSRequiresBucket(t *testing.T) {
	setupTest(t)
	viper.Set("storage.provider", "gcs")
	viper.Set("storage.gcs.bucket_name", "")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
}

func TestNewApp_PostgresRequiresDSN(t *testing.T) {
	setupTest(t)
	viper.Set("history.provider", "postgres")
	viper.Set("history.postgres.dsn", "")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
}

func TestNewApp_PubSubRequiresProjectAndTopic(t *testing.T) {
	setupTest(t)
	viper.Set("notify.provider", "pubsub")
	viper.Set("notify.gcp.project_id", "")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
}

func TestNewApp_BadFetchTransport(t *testing.T) {
	setupTest(t)
	viper.Set("fetch.transport", "smoke-signals")

	_, err := app.NewApp(context.Background())
	require.Error(t, err)
}
