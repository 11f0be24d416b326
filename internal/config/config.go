// Package config loads server settings from defaults, an optional YAML file
// and CALLBRIDGE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DefaultFileName = "callbridge"
	EnvPrefix       = "CALLBRIDGE"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Transport    TransportConfig    `mapstructure:"transport"`
	Routing      RoutingConfig      `mapstructure:"routing"`
	Log          LogConfig          `mapstructure:"log"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Stats        StatsConfig        `mapstructure:"stats"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

type TransportConfig struct {
	SendBuffer     int           `mapstructure:"sendBuffer"`
	MaxMessageSize int64         `mapstructure:"maxMessageSize"`
	WriteWait      time.Duration `mapstructure:"writeWait"`
	PongWait       time.Duration `mapstructure:"pongWait"`
	PingPeriod     time.Duration `mapstructure:"pingPeriod"`
}

type RoutingConfig struct {
	// FirstAcceptWins drops call responses once a call has been answered.
	FirstAcceptWins bool `mapstructure:"firstAcceptWins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

type ProvisioningConfig struct {
	Provider         string `mapstructure:"provider"` // "memory" or "chime"
	Region           string `mapstructure:"region"`
	DefaultMeetingID string `mapstructure:"defaultMeetingId"`
}

type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":3001")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.shutdownTimeout", "5s")

	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("transport.maxMessageSize", 64*1024)
	v.SetDefault("transport.writeWait", "10s")
	v.SetDefault("transport.pongWait", "60s")
	v.SetDefault("transport.pingPeriod", "54s")

	v.SetDefault("routing.firstAcceptWins", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("provisioning.provider", "memory")
	v.SetDefault("provisioning.region", "us-east-1")
	v.SetDefault("provisioning.defaultMeetingId", "demo-meeting")

	v.SetDefault("stats.interval", "0s")
}

type Loader struct {
	v *viper.Viper
}

// NewLoader prepares a loader. An empty file means callbridge.yaml in the
// working directory, which may be missing.
func NewLoader(file string) *Loader {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Debug().Msg("Config file not found, using defaults and environment")
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch calls fn with the new configuration each time the config file
// changes. It reports false when no file was loaded, so there is nothing
// to watch.
func (l *Loader) Watch(fn func(*Config)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("Config reloaded")
		fn(cfg)
	})
	l.v.WatchConfig()
	return true
}

func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Transport.SendBuffer <= 0 {
		return errors.New("transport.sendBuffer must be positive")
	}
	if c.Transport.PingPeriod <= 0 || c.Transport.PingPeriod >= c.Transport.PongWait {
		return errors.New("transport.pingPeriod must be positive and shorter than transport.pongWait")
	}
	switch c.Provisioning.Provider {
	case "memory", "chime":
	default:
		return errors.New("provisioning.provider must be memory or chime")
	}
	return nil
}
