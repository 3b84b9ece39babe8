// Package settings resolves process-wide settings from defaults, an optional
// balance.yaml (or .toml/.json) file and KSPBAL_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KSPBAL_PORT.
const EnvPrefix = "KSPBAL"

// Keys
const (
	KeyTechFile     = "tech_file"
	KeyConfigFile   = "config_file"
	KeyPartsFile    = "parts_file"
	KeyTemplateFile = "template_file"
	KeyOutput       = "output"
	KeyHost         = "host"
	KeyPort         = "port"
	KeyWorkers      = "workers"
	KeyDigits       = "digits"
	KeyRunsDir      = "runs_dir"
	KeyRunTTL       = "run_ttl"
	KeyDebug        = "debug"
	KeyNgrokEnabled = "ngrok.enabled"
	KeyNgrokDomain  = "ngrok.domain"
	KeyNgrokToken   = "ngrok.authtoken"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds the resolved configuration
type Settings struct {
	TechFile     string        `mapstructure:"tech_file"`
	ConfigFile   string        `mapstructure:"config_file"`
	PartsFile    string        `mapstructure:"parts_file"`
	TemplateFile string        `mapstructure:"template_file"`
	Output       string        `mapstructure:"output"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Workers      int           `mapstructure:"workers"`
	Digits       int           `mapstructure:"digits"`
	RunsDir      string        `mapstructure:"runs_dir"`
	RunTTL       time.Duration `mapstructure:"run_ttl"`
	Debug        bool          `mapstructure:"debug"`
	Ngrok        Ngrok         `mapstructure:"ngrok"`
}

// Ngrok configures the optional public tunnel
type Ngrok struct {
	Enabled   bool   `mapstructure:"enabled"`
	Domain    string `mapstructure:"domain"`
	AuthToken string `mapstructure:"authtoken"`
}

// Addr returns host:port
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// New returns a viper instance with defaults and environment bindings set
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyTechFile, "configs/example_techs.ini")
	v.SetDefault(KeyConfigFile, "configs/example_configs.ini")
	v.SetDefault(KeyPartsFile, "configs/example_parts.csv")
	v.SetDefault(KeyTemplateFile, "")
	v.SetDefault(KeyOutput, "")
	v.SetDefault(KeyHost, "localhost")
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyDigits, 4)
	v.SetDefault(KeyRunsDir, "runs")
	v.SetDefault(KeyRunTTL, 24*time.Hour)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyNgrokEnabled, false)
	v.SetDefault(KeyNgrokDomain, "")
	v.SetDefault(KeyNgrokToken, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The ngrok agent's own variables are honored too.
	v.BindEnv(KeyNgrokToken, EnvPrefix+"_NGROK_AUTHTOKEN", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")
	v.BindEnv(KeyNgrokDomain, EnvPrefix+"_NGROK_DOMAIN", "NGROK_DOMAIN")
	v.BindEnv(KeyNgrokEnabled, EnvPrefix+"_NGROK_ENABLED", "NGROK_ENABLED")

	return v
}

// Load resolves settings. When path is empty, balance.{yaml,toml,json} is
// looked up in the working directory and its absence is not an error.
func Load(path string) (*Settings, error) {
	v := New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("balance")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals and validates the settings held by v
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges that would otherwise fail late
func (s *Settings) Validate() error {
	switch {
	case s.Port < 0 || s.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidSettings, s.Port)
	case s.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidSettings)
	case s.Digits < 1 || s.Digits > 17:
		return fmt.Errorf("%w: digits must be between 1 and 17, got %d", ErrInvalidSettings, s.Digits)
	case s.RunTTL < 0:
		return fmt.Errorf("%w: run_ttl must not be negative", ErrInvalidSettings)
	}
	return nil
}
