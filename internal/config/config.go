// Package config loads gateway settings from configs/config.yml, RINNAI_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/logger"
	"rinnai_gateway/internal/service"
)

// EnvPrefix namespaces environment overrides, e.g. RINNAI_APPLIANCE_HOST.
const EnvPrefix = "RINNAI"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Appliance ApplianceConfig `mapstructure:"appliance"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ApplianceConfig tunes the appliance session and command confirmation.
// An empty Host enables UDP discovery.
type ApplianceConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	AutoReconnect     bool          `mapstructure:"auto_reconnect"`
	Keepalive         bool          `mapstructure:"keepalive"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	KeepalivePayload  string        `mapstructure:"keepalive_payload"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	DiscoveryTimeout  time.Duration `mapstructure:"discovery_timeout"`
	ConfirmInterval   time.Duration `mapstructure:"confirm_interval"`
	ConfirmTimeout    time.Duration `mapstructure:"confirm_timeout"`
}

type MQTTConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	ClientID          string        `mapstructure:"client_id"`
	RootTopic         string        `mapstructure:"root_topic"`
	DiscoveryPrefix   string        `mapstructure:"discovery_prefix"`
	RepublishInterval time.Duration `mapstructure:"republish_interval"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// SetDefaults registers a default for every key. Env overrides only apply to
// keys viper knows about, so every key must appear here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", logger.InfoLevel)

	v.SetDefault("appliance.host", "")
	v.SetDefault("appliance.port", 0)
	v.SetDefault("appliance.auto_reconnect", true)
	v.SetDefault("appliance.keepalive", true)
	v.SetDefault("appliance.keepalive_interval", appliance.DefaultKeepaliveInterval)
	v.SetDefault("appliance.keepalive_payload", appliance.DefaultKeepalivePayload)
	v.SetDefault("appliance.idle_timeout", appliance.DefaultIdleTimeout)
	v.SetDefault("appliance.settle_delay", appliance.DefaultSettleDelay)
	v.SetDefault("appliance.dial_timeout", appliance.DefaultDialTimeout)
	v.SetDefault("appliance.max_attempts", appliance.DefaultMaxAttempts)
	v.SetDefault("appliance.discovery_timeout", appliance.DefaultDiscoveryTimeout)
	v.SetDefault("appliance.confirm_interval", service.DefaultConfirmInterval)
	v.SetDefault("appliance.confirm_timeout", service.DefaultConfirmTimeout)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.root_topic", "rinnaitouch")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.republish_interval", 60*time.Second)

	v.SetDefault("http.port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", service.DefaultTokenTTL)
}

// Load reads file, or searches configs/ and . for config.yml when file is
// empty. A missing searched file is not an error; defaults and env apply.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	if c.Appliance.Host != "" && !validPort(c.Appliance.Port) {
		return fmt.Errorf("%w: appliance.port %d must be set with appliance.host", ErrInvalid, c.Appliance.Port)
	}
	if c.Appliance.Host == "" && c.Appliance.Port != 0 {
		return fmt.Errorf("%w: appliance.port set without appliance.host", ErrInvalid)
	}
	if c.Appliance.MaxAttempts < 1 {
		return fmt.Errorf("%w: appliance.max_attempts must be at least 1", ErrInvalid)
	}
	if c.Appliance.ConfirmInterval <= 0 || c.Appliance.ConfirmTimeout < c.Appliance.ConfirmInterval {
		return fmt.Errorf("%w: appliance.confirm_timeout must be at least appliance.confirm_interval", ErrInvalid)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Host == "" || !validPort(c.MQTT.Port) {
			return fmt.Errorf("%w: mqtt broker %s:%d", ErrInvalid, c.MQTT.Host, c.MQTT.Port)
		}
		if strings.Trim(c.MQTT.RootTopic, "/") == "" {
			return fmt.Errorf("%w: mqtt.root_topic is empty", ErrInvalid)
		}
		if strings.ContainsAny(c.MQTT.RootTopic, "+#") {
			return fmt.Errorf("%w: mqtt.root_topic %q contains a wildcard", ErrInvalid, c.MQTT.RootTopic)
		}
	}
	if c.HTTP.Port == "" {
		return fmt.Errorf("%w: http.port is empty", ErrInvalid)
	}
	return nil
}

// SessionOptions maps the appliance section onto session options.
func (c ApplianceConfig) SessionOptions() appliance.Options {
	return appliance.Options{
		Host:              c.Host,
		Port:              c.Port,
		AutoReconnect:     c.AutoReconnect,
		Keepalive:         c.Keepalive,
		KeepaliveInterval: c.KeepaliveInterval,
		KeepalivePayload:  c.KeepalivePayload,
		IdleTimeout:       c.IdleTimeout,
		SettleDelay:       c.SettleDelay,
		DialTimeout:       c.DialTimeout,
		MaxAttempts:       c.MaxAttempts,
	}
}

func (c ApplianceConfig) ServiceOptions() service.ApplianceOptions {
	return service.ApplianceOptions{ConfirmInterval: c.ConfirmInterval, ConfirmTimeout: c.ConfirmTimeout}
}

func (c AuthConfig) Options() service.AuthOptions {
	return service.AuthOptions{SigningKey: c.SigningKey, TokenTTL: c.TokenTTL}
}

func validPort(p int) bool { return p > 0 && p <= 65535 }
