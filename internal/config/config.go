package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	DirScanDelay     time.Duration `mapstructure:"dir_scan_delay"`
	DebounceTimeout  time.Duration `mapstructure:"debounce_timeout"`
	DebounceSweep    time.Duration `mapstructure:"debounce_sweep"`
	PurgeDelay       time.Duration `mapstructure:"purge_delay"`
	Verify           string        `mapstructure:"verify"`
	MismatchRecopies int           `mapstructure:"mismatch_recopies"`
	EscalateEvery    int           `mapstructure:"escalate_every"`
	TrashList        []string      `mapstructure:"trash_list"`
	IgnoreList       []string      `mapstructure:"ignore_list"`
	DaemonPort       int           `mapstructure:"daemon_port"`
	DBPath           string        `mapstructure:"db_path"`
	LogFile          string        `mapstructure:"log_file"`
}

const (
	VerifyHash = "hash"
	VerifySize = "size"
)

var Default = Config{
	RetryDelay:       time.Second,
	SettleDelay:      10 * time.Second,
	DirScanDelay:     5 * time.Second,
	DebounceTimeout:  30 * time.Second,
	DebounceSweep:    5 * time.Second,
	PurgeDelay:       2 * time.Second,
	Verify:           VerifyHash,
	MismatchRecopies: 1,
	EscalateEvery:    60,
	TrashList:        []string{".DS_Store", "Thumbs.db", "desktop.ini", "._*"},
	IgnoreList: []string{
		"$RECYCLE.BIN", "System Volume Information",
		".Trashes", ".Spotlight-V100", ".fseventsd",
	},
	DaemonPort: 9400,
	DBPath:     "mirror.db",
}

// Dir returns ~/.mirror, creating it when missing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".mirror")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("retry_delay", Default.RetryDelay)
	v.SetDefault("settle_delay", Default.SettleDelay)
	v.SetDefault("dir_scan_delay", Default.DirScanDelay)
	v.SetDefault("debounce_timeout", Default.DebounceTimeout)
	v.SetDefault("debounce_sweep", Default.DebounceSweep)
	v.SetDefault("purge_delay", Default.PurgeDelay)
	v.SetDefault("verify", Default.Verify)
	v.SetDefault("mismatch_recopies", Default.MismatchRecopies)
	v.SetDefault("escalate_every", Default.EscalateEvery)
	v.SetDefault("trash_list", Default.TrashList)
	v.SetDefault("ignore_list", Default.IgnoreList)
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("db_path", filepath.Join(configDir, Default.DBPath))
	v.SetDefault("log_file", Default.LogFile)

	v.SetEnvPrefix("MIRROR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Verify != VerifyHash && c.Verify != VerifySize {
		return fmt.Errorf("verify must be %q or %q, got %q", VerifyHash, VerifySize, c.Verify)
	}

	durations := map[string]time.Duration{
		"retry_delay":      c.RetryDelay,
		"debounce_timeout": c.DebounceTimeout,
		"debounce_sweep":   c.DebounceSweep,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.SettleDelay < 0 || c.DirScanDelay < 0 || c.PurgeDelay < 0 {
		return errors.New("delays must not be negative")
	}

	if c.MismatchRecopies < 0 {
		return fmt.Errorf("mismatch_recopies must not be negative, got %d", c.MismatchRecopies)
	}

	return nil
}
