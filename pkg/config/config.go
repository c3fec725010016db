// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file, environment variables, and command-line flags, providing a
// unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and
// enables reading from environment variables. It is called once at
// startup via cobra.OnInitialize.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/idxetl/")
	viper.AddConfigPath("$HOME/.idxetl")

	// Fetch defaults. The keyword is the exact disclosure title the IDX
	// publishes under; changing it redirects the whole pipeline to a
	// different announcement series.
	viper.SetDefault("fetch.transport", "direct")
	viper.SetDefault("fetch.base_url", "https://www.idx.co.id/primary/NewsAnnouncement/GetAnnouncement")
	viper.SetDefault("fetch.keyword", "Pemegang Saham di atas 5%")
	viper.SetDefault("fetch.user_agent",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	viper.SetDefault("fetch.referer", "https://www.idx.co.id/id/perusahaan-tercatat/keterbukaan-informasi/")
	viper.SetDefault("fetch.origin", "https://www.idx.co.id")
	viper.SetDefault("fetch.proxy_url", "")
	viper.SetDefault("fetch.relay.base_url", "https://api.scraperapi.com")
	viper.SetDefault("fetch.relay.api_key", "")
	viper.SetDefault("fetch.timeout", "60s")
	viper.SetDefault("fetch.rate_limit_qps", 1.0)
	viper.SetDefault("fetch.rate_burst", 1)

	// Pipeline defaults.
	viper.SetDefault("etl.dataset_prefix", "stock_market/data_kepentingan")
	viper.SetDefault("etl.changes_prefix", "stock_market/data_kepentingan_changes")
	viper.SetDefault("etl.raw_prefix", "stock_market/raw_kepentingan")
	viper.SetDefault("etl.write_changes", true)
	viper.SetDefault("etl.expect_rows", false)
	viper.SetDefault("etl.retry.max_attempts", 3)
	viper.SetDefault("etl.retry.base_delay", "500ms")
	viper.SetDefault("etl.retry.max_delay", "10s")

	// Backfill defaults.
	viper.SetDefault("backfill.workers", 4)
	viper.SetDefault("backfill.download_dir", "data/downloads")

	// Service providers.
	viper.SetDefault("storage.provider", "noop")
	viper.SetDefault("storage.gcs.bucket_name", "")
	viper.SetDefault("storage.local.root", "data/sink")
	viper.SetDefault("history.provider", "noop")
	viper.SetDefault("history.postgres.dsn", "")
	viper.SetDefault("notify.provider", "noop")
	viper.SetDefault("notify.gcp.project_id", "")
	viper.SetDefault("notify.gcp.topic_id", "")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("logging.development", false)

	// e.g. IDXETL_STORAGE_PROVIDER=gcs
	viper.SetEnvPrefix("IDXETL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
