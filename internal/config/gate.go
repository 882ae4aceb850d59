package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GateConfig is the runtime-tunable policy for the check-in gate and the
// notification dispatcher. A zero scan rate turns scan throttling off.
type GateConfig struct {
	StatsCacheTTL      time.Duration `mapstructure:"statsCacheTTL"`
	OutboxPollInterval time.Duration `mapstructure:"outboxPollInterval"`
	OutboxBatchSize    int           `mapstructure:"outboxBatchSize"`
	OutboxMaxAttempts  int           `mapstructure:"outboxMaxAttempts"`
	ScanRatePerSecond  float64       `mapstructure:"scanRatePerSecond"`
	ScanBurst          int           `mapstructure:"scanBurst"`
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		StatsCacheTTL:      5 * time.Second,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    50,
		OutboxMaxAttempts:  10,
		ScanRatePerSecond:  5,
		ScanBurst:          10,
	}
}

type GateConfigHolder struct {
	current atomic.Value // holds GateConfig
}

// NewStaticGateConfigHolder returns a holder that never reloads.
func NewStaticGateConfigHolder(cfg GateConfig) *GateConfigHolder {
	holder := &GateConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewGateConfigHolder(log *zap.Logger) (*GateConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("gate")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/eventpass")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EVENTPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGateConfig()
	v.SetDefault("gate.statsCacheTTL", defaults.StatsCacheTTL)
	v.SetDefault("gate.outboxPollInterval", defaults.OutboxPollInterval)
	v.SetDefault("gate.outboxBatchSize", defaults.OutboxBatchSize)
	v.SetDefault("gate.outboxMaxAttempts", defaults.OutboxMaxAttempts)
	v.SetDefault("gate.scanRatePerSecond", defaults.ScanRatePerSecond)
	v.SetDefault("gate.scanBurst", defaults.ScanBurst)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg GateConfig
	if err := v.UnmarshalKey("gate", &cfg); err != nil {
		return nil, err
	}
	if err := validateGateConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticGateConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("config.gate")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GateConfig
		if err := v.UnmarshalKey("gate", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateGateConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *GateConfigHolder) Get() GateConfig {
	return h.current.Load().(GateConfig)
}

func validateGateConfig(cfg GateConfig) error {
	if cfg.StatsCacheTTL < 0 {
		return errors.New("gate.statsCacheTTL cannot be negative")
	}
	if cfg.OutboxPollInterval <= 0 {
		return errors.New("gate.outboxPollInterval must be positive")
	}
	if cfg.OutboxBatchSize <= 0 {
		return errors.New("gate.outboxBatchSize must be positive")
	}
	if cfg.OutboxMaxAttempts <= 0 {
		return errors.New("gate.outboxMaxAttempts must be positive")
	}
	if cfg.ScanRatePerSecond < 0 || cfg.ScanBurst < 0 {
		return errors.New("gate scan throttling cannot be negative")
	}
	if cfg.ScanRatePerSecond > 0 && cfg.ScanBurst == 0 {
		return errors.New("gate.scanBurst must be positive when scanRatePerSecond is set")
	}
	return nil
}
