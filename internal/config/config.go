// Package config loads the quest settings through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-quest/internal/common"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// SPICE_QUEST_INDICATORS_FRESHNESS=1m.
const EnvPrefix = "SPICE_QUEST"

// Config is the typed application configuration.
type Config struct {
	Logging    LoggingConfig
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	Metrics    MetricsConfig
	Indicators IndicatorConfig
	Reward     RewardConfig
	Missions   MissionConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// IndicatorConfig tunes the indicator engine.
type IndicatorConfig struct {
	// Freshness is how long a cached snapshot is served without recomputing.
	Freshness time.Duration
	// WindowDays limits income and expense totals to the trailing window.
	// Zero means the full history.
	WindowDays int
	// EssentialDays is the trailing period used for essential monthly expense.
	EssentialDays int
}

// MissionConfig tunes assignment.
type MissionConfig struct {
	MaxActive    int
	TrivialRatio float64
	AutoActivate bool
}

// RewardConfig bounds the reward lock wait.
type RewardConfig struct {
	LockTimeout time.Duration
	MaxAttempts int
}

// SchedulerConfig holds the cron spec of the periodic mission sweep.
type SchedulerConfig struct {
	Sweep string
}

// MetricsConfig is where `quest serve` exposes prometheus metrics.
type MetricsConfig struct {
	Addr string
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("indicators.freshness", "5m")
	v.SetDefault("indicators.window_days", 0)
	v.SetDefault("indicators.essential_days", 90)
	v.SetDefault("missions.max_active", 3)
	v.SetDefault("missions.trivial_ratio", 0.95)
	v.SetDefault("missions.auto_activate", false)
	v.SetDefault("reward.lock_timeout", "5s")
	v.SetDefault("reward.max_attempts", 3)
	v.SetDefault("scheduler.sweep", "@every 15m")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindEnv makes every known key overridable from the environment.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v, which should already have its
// defaults, config file and environment bindings in place.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Indicators: IndicatorConfig{
			Freshness:     v.GetDuration("indicators.freshness"),
			WindowDays:    v.GetInt("indicators.window_days"),
			EssentialDays: v.GetInt("indicators.essential_days"),
		},
		Missions: MissionConfig{
			MaxActive:    v.GetInt("missions.max_active"),
			TrivialRatio: v.GetFloat64("missions.trivial_ratio"),
			AutoActivate: v.GetBool("missions.auto_activate"),
		},
		Reward: RewardConfig{
			LockTimeout: v.GetDuration("reward.lock_timeout"),
			MaxAttempts: v.GetInt("reward.max_attempts"),
		},
		Scheduler: SchedulerConfig{Sweep: v.GetString("scheduler.sweep")},
		Metrics:   MetricsConfig{Addr: v.GetString("metrics.addr")},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	case c.Indicators.Freshness <= 0:
		return fmt.Errorf("%w: indicators.freshness must be positive", common.ErrInvalidConfig)
	case c.Indicators.WindowDays < 0:
		return fmt.Errorf("%w: indicators.window_days must not be negative", common.ErrInvalidConfig)
	case c.Indicators.EssentialDays <= 0:
		return fmt.Errorf("%w: indicators.essential_days must be positive", common.ErrInvalidConfig)
	case c.Missions.MaxActive <= 0:
		return fmt.Errorf("%w: missions.max_active must be positive", common.ErrInvalidConfig)
	case c.Missions.TrivialRatio <= 0 || c.Missions.TrivialRatio > 1:
		return fmt.Errorf("%w: missions.trivial_ratio must be in (0, 1]", common.ErrInvalidConfig)
	case c.Reward.LockTimeout <= 0:
		return fmt.Errorf("%w: reward.lock_timeout must be positive", common.ErrInvalidConfig)
	case c.Reward.MaxAttempts <= 0:
		return fmt.Errorf("%w: reward.max_attempts must be positive", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return nil
}
