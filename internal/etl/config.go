package etl

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences a pipeline run. All values
// originate from Viper so the pipeline can be configured via file, env
// vars, or CLI flags.
type Config struct {
	DatasetPrefix  string
	ChangesPrefix  string
	RawPrefix      string
	WriteChanges   bool
	ExpectRows     bool
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	DownloadDir    string
	Workers        int64
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatasetPrefix:  v.GetString("etl.dataset_prefix"),
		ChangesPrefix:  v.GetString("etl.changes_prefix"),
		RawPrefix:      v.GetString("etl.raw_prefix"),
		WriteChanges:   v.GetBool("etl.write_changes"),
		ExpectRows:     v.GetBool("etl.expect_rows"),
		RetryAttempts:  v.GetInt("etl.retry.max_attempts"),
		RetryBaseDelay: v.GetDuration("etl.retry.base_delay"),
		RetryMaxDelay:  v.GetDuration("etl.retry.max_delay"),
		DownloadDir:    v.GetString("backfill.download_dir"),
		Workers:        v.GetInt64("backfill.workers"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatasetPrefix) == "" {
		return fmt.Errorf("etl.dataset_prefix must be set")
	}
	if c.WriteChanges && strings.TrimSpace(c.ChangesPrefix) == "" {
		return fmt.Errorf("etl.changes_prefix must be set when etl.write_changes is enabled")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("etl.retry.max_attempts must be >= 0")
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 {
		return fmt.Errorf("etl.retry delays must be >= 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("backfill.workers must be > 0")
	}
	return nil
}
