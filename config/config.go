package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "VPUPPETS"

// Config holds all console settings
type Config struct {
	Listen    string `mapstructure:"listen"`
	DBPath    string `mapstructure:"db_path"`
	LogDir    string `mapstructure:"log_dir"`
	LogLevel  string `mapstructure:"log_level"`
	DataDir   string `mapstructure:"data_dir"`
	JWTSecret string `mapstructure:"jwt_secret"`
	MockExec  bool   `mapstructure:"mock_exec"`

	NATS    NATSConfig    `mapstructure:"nats"`
	GeoIP   GeoIPConfig   `mapstructure:"geoip"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Health  HealthConfig  `mapstructure:"health"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Replay  ReplayConfig  `mapstructure:"replay"`
}

// NATSConfig configures the live telemetry feed. An empty URL disables it.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type GeoIPConfig struct {
	Path string `mapstructure:"path"`
}

type WebhookConfig struct {
	DiscordURL string `mapstructure:"discord_url"`
}

type MonitorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlertCooldown time.Duration `mapstructure:"alert_cooldown"`
}

type HealthConfig struct {
	OfflineAfter time.Duration `mapstructure:"offline_after"`
}

type ScanConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type ReplayConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("db_path", "vpuppets.db")
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", ".")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("mock_exec", false)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "vpuppets.logs")
	v.SetDefault("geoip.path", "")
	v.SetDefault("webhook.discord_url", "")
	v.SetDefault("monitor.interval", time.Minute)
	v.SetDefault("monitor.alert_cooldown", 10*time.Minute)
	v.SetDefault("health.offline_after", 2*time.Minute)
	v.SetDefault("scan.timeout", 15*time.Second)
	v.SetDefault("scan.poll_interval", time.Second)
	v.SetDefault("replay.tick", 50*time.Millisecond)
}

// Load reads defaults, the optional config file and VPUPPETS_* env vars
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return errors.New("listen address is empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path is empty")
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{"monitor.interval", c.Monitor.Interval},
		{"monitor.alert_cooldown", c.Monitor.AlertCooldown},
		{"health.offline_after", c.Health.OfflineAfter},
		{"scan.timeout", c.Scan.Timeout},
		{"scan.poll_interval", c.Scan.PollInterval},
		{"replay.tick", c.Replay.Tick},
	}
	var bad []string
	for _, d := range durations {
		if d.val <= 0 {
			bad = append(bad, d.key)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("non-positive durations: %s", strings.Join(bad, ", "))
	}
	if c.Scan.PollInterval > c.Scan.Timeout {
		return fmt.Errorf("scan.poll_interval (%s) exceeds scan.timeout (%s)", c.Scan.PollInterval, c.Scan.Timeout)
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return errors.New("nats.subject is required when nats.url is set")
	}
	return nil
}
