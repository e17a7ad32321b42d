package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "RELAY"

type Config struct {
	Mode                string        `mapstructure:"mode"`
	Port                int           `mapstructure:"port"`
	LogLevel            string        `mapstructure:"log_level"`
	ReadLimit           int64         `mapstructure:"read_limit"`
	PingPeriod          time.Duration `mapstructure:"ping_period"`
	SendBuffer          int           `mapstructure:"send_buffer"`
	Secret              string        `mapstructure:"secret"`
	DatabasePath        string        `mapstructure:"database_path"`
	RingTimeout         time.Duration `mapstructure:"ring_timeout"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	EventRate           float64       `mapstructure:"event_rate"`
	EventBurst          int           `mapstructure:"event_burst"`
	Backpressure        string        `mapstructure:"backpressure"`
	InternalToken       string        `mapstructure:"internal_token"`
	TrustIdentityHeader bool          `mapstructure:"trust_identity_header"`
	ICEServers          []string      `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("database_path", "relay.db")
	v.SetDefault("ring_timeout", "0s")
	v.SetDefault("sweep_interval", "5s")
	v.SetDefault("event_rate", 20)
	v.SetDefault("event_burst", 40)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("internal_token", "")
	v.SetDefault("trust_identity_header", false)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
}

// Load reads config/config.<CONFIG_ENV>.yaml, or file when set, then applies
// RELAY_* environment overrides. A missing file is not an error.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Secret == "" {
		cfg.Secret = randomSecret()
		log.Warn().Str("module", "config").Msg("no secret configured, cookie sessions will not survive a restart")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("db", cfg.DatabasePath).Dur("ring_timeout", cfg.RingTimeout).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.RingTimeout < 0 {
		errs = append(errs, errors.New("ring_timeout must not be negative"))
	}
	if c.RingTimeout > 0 && c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive when ring_timeout is set"))
	}
	if c.Backpressure != "kick" && c.Backpressure != "drop" {
		errs = append(errs, fmt.Errorf("backpressure %q must be kick or drop", c.Backpressure))
	}
	return errors.Join(errs...)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
