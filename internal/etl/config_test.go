package etl

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func configViper() *viper.Viper {
	v := viper.New()
	v.Set("etl.dataset_prefix", "stock_market/data_kepentingan")
	v.Set("etl.changes_prefix", "stock_market/data_kepentingan_changes")
	v.Set("etl.raw_prefix", "stock_market/raw_kepentingan")
	v.Set("etl.write_changes", true)
	v.Set("etl.retry.max_attempts", 5)
	v.Set("etl.retry.base_delay", "250ms")
	v.Set("etl.retry.max_delay", "5s")
	v.Set("backfill.workers", 8)
	v.Set("backfill.download_dir", "data/downloads")
	return v
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(configViper())
	require.NoError(t, err)
	require.Equal(t, "stock_market/data_kepentingan", cfg.DatasetPrefix)
	require.True(t, cfg.WriteChanges)
	require.Equal(t, 5, cfg.RetryAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	require.Equal(t, int64(8), cfg.Workers)
}

func TestLoadConfig_MissingDatasetPrefix(t *testing.T) {
	t.Parallel()

	v := configViper()
	v.Set("etl.dataset_prefix", "  ")
	_, err := LoadConfig(v)
	require.Error(t, err)
}

func TestLoadConfig_ChangesPrefixRequiredWhenEnabled(t *testing.T) {
	t.Parallel()

	v := configViper()
	v.Set("etl.changes_prefix", "")
	_, err := LoadConfig(v)
	require.Error(t, err)

	v.Set("etl.write_changes", false)
	_, err = LoadConfig(v)
	require.NoError(t, err)
}

func TestLoadConfig_RejectsNonPositiveWorkers(t *testing.T) {
	t.Parallel()

	v := configViper()
	v.Set("backfill.workers", 0)
	_, err := LoadConfig(v)
	require.Error(t, err)
}
