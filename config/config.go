// Package config provides layered configuration for a DCB-core-backed
// proxy: environment variables override a config file, which overrides
// these defaults. Command-line flags are not read here. Grounded on
// FeatureBaseDB's use of spf13/viper + spf13/cobra + spf13/pflag for its
// server binary.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the settings a DCB-core-backed proxy binary needs at
// startup: poll worker count, per-read buffer cap, and the listen/backend
// addresses.
type Config struct {
	// PollThreads is the number of poller goroutines the PollMgr runs,
	// each of which drives its own ProcessZombies pass per iteration.
	PollThreads int `mapstructure:"poll_threads"`
	// MaxBufferSize is a per-read buffer cap setting. The DCB read path
	// does not consult it; it uses the constant dcb.MaxBufferSize.
	MaxBufferSize int `mapstructure:"max_buffer_size"`
	// ZombieCleanupThrottle is a zombie-cleanup throttle setting. It is
	// loaded but no package in this module consults it.
	ZombieCleanupThrottle time.Duration `mapstructure:"zombie_cleanup_throttle"`
	// ListenAddr is the address the demo listener binds.
	ListenAddr string `mapstructure:"listen_addr"`
	// BackendAddr is a backend address setting. It is loaded but nothing
	// in this module dials it.
	BackendAddr string `mapstructure:"backend_addr"`
	// MetricsAddr is the address the Prometheus /metrics and /diag HTTP
	// endpoints bind.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func defaults() Config {
	return Config{
		PollThreads:           1,
		MaxBufferSize:         4096,
		ZombieCleanupThrottle: time.Second,
		ListenAddr:            "127.0.0.1:3306",
		BackendAddr:           "127.0.0.1:13306",
		MetricsAddr:           "127.0.0.1:9100",
	}
}

// Load builds a Config from, in increasing priority: the built-in
// defaults, a config file at path (if non-empty and present), and
// DCBCTL_-prefixed environment variables. It does not read command-line
// flags.
func Load(path string) (Config, error) {
	v := viper.New()
	d := defaults()
	v.SetDefault("poll_threads", d.PollThreads)
	v.SetDefault("max_buffer_size", d.MaxBufferSize)
	v.SetDefault("zombie_cleanup_throttle", d.ZombieCleanupThrottle)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("backend_addr", d.BackendAddr)
	v.SetDefault("metrics_addr", d.MetricsAddr)

	v.SetEnvPrefix("dcbctl")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}
