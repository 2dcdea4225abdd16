// Package config handles loading and validating the VicVoix configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hammamikhairi/vicvoix/internal/domain"
	"github.com/hammamikhairi/vicvoix/internal/logger"
	"github.com/hammamikhairi/vicvoix/internal/params"
	"github.com/hammamikhairi/vicvoix/internal/speech"
)

// Config is the root configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Slider    SliderConfig    `mapstructure:"slider"`
	Playback  PlaybackConfig  `mapstructure:"playback"`
	Export    ExportConfig    `mapstructure:"export"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

// APIConfig holds the speech service settings.
type APIConfig struct {
	Key     string        `mapstructure:"key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SynthesisConfig holds request defaults.
type SynthesisConfig struct {
	Locale          string  `mapstructure:"locale"`
	MaxChars        int     `mapstructure:"max_chars"`
	SampleRateHertz int     `mapstructure:"sample_rate_hertz"`
	DefaultRate     float64 `mapstructure:"default_rate"`
	DefaultPitch    float64 `mapstructure:"default_pitch"`
	DefaultStyle    string  `mapstructure:"default_style"`
}

// SliderConfig sets the control range of the rate and pitch sliders.
type SliderConfig struct {
	Max  int `mapstructure:"max"`
	Step int `mapstructure:"step"`
}

// PlaybackConfig holds player settings.
type PlaybackConfig struct {
	ReportInterval time.Duration `mapstructure:"report_interval"`
	SeekStep       time.Duration `mapstructure:"seek_step"`
}

// ExportConfig holds save settings.
type ExportConfig struct {
	Dir               string `mapstructure:"dir"`
	NamePrefix        string `mapstructure:"name_prefix"`
	LegacyPermissions bool   `mapstructure:"legacy_permissions"`
	PlayAfter         bool   `mapstructure:"play_after"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // off, normal, verbose
	File  string `mapstructure:"file"`
}

var localePattern = regexp.MustCompile(`^[a-z]{2,3}-[A-Z]{2}$`)

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise ./vicvoix.yaml
// and <user config dir>/vicvoix/vicvoix.yaml are searched.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("api.key", "")
	v.SetDefault("api.base_url", speech.DefaultBaseURL)
	v.SetDefault("api.timeout", speech.DefaultHTTPTimeout)
	v.SetDefault("synthesis.locale", speech.DefaultLocale)
	v.SetDefault("synthesis.max_chars", speech.DefaultMaxChars)
	v.SetDefault("synthesis.sample_rate_hertz", speech.DefaultSampleRate)
	v.SetDefault("synthesis.default_rate", domain.DefaultRate)
	v.SetDefault("synthesis.default_pitch", domain.DefaultPitch)
	v.SetDefault("synthesis.default_style", "")
	v.SetDefault("slider.max", params.DefaultControlMax)
	v.SetDefault("slider.step", 1)
	v.SetDefault("playback.report_interval", time.Second)
	v.SetDefault("playback.seek_step", 5*time.Second)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.name_prefix", "VicVoix")
	v.SetDefault("export.legacy_permissions", false)
	v.SetDefault("export.play_after", false)
	v.SetDefault("logging.level", "normal")
	v.SetDefault("logging.file", "vicvoix.log")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vicvoix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "vicvoix"))
		}
	}

	// Environment variables: VICVOIX_SYNTHESIS_LOCALE, VICVOIX_EXPORT_DIR, etc.
	// The key also answers to the service's conventional TTS_API_KEY.
	v.SetEnvPrefix("VICVOIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.key", speech.EnvPrefixedKey, speech.EnvAPIKey); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	// Resolve env var references in the key (e.g. "${GOOGLE_TTS_KEY}")
	cfg.API.Key = resolveEnvRef(strings.TrimSpace(cfg.API.Key))

	return &cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrValidation}, a...)...))
	}

	if c.API.Key == "" {
		bad("api.key is not set (use %s or %s)", speech.EnvAPIKey, speech.EnvPrefixedKey)
	}
	if c.API.Timeout <= 0 {
		bad("api.timeout must be positive")
	}
	if !localePattern.MatchString(c.Synthesis.Locale) {
		bad("synthesis.locale %q is not a locale like fr-FR", c.Synthesis.Locale)
	}
	if c.Synthesis.MaxChars <= 0 {
		bad("synthesis.max_chars must be positive")
	}
	if c.Synthesis.SampleRateHertz <= 0 {
		bad("synthesis.sample_rate_hertz must be positive")
	}
	if !speech.ValidStyle(c.Synthesis.DefaultStyle) {
		bad("synthesis.default_style %q is not a valid token", c.Synthesis.DefaultStyle)
	}
	if c.Slider.Max <= 0 {
		bad("slider.max must be positive")
	}
	if c.Slider.Step <= 0 || c.Slider.Step > c.Slider.Max {
		bad("slider.step must be between 1 and slider.max")
	}
	if c.Playback.ReportInterval <= 0 {
		bad("playback.report_interval must be positive")
	}
	if c.Playback.SeekStep <= 0 {
		bad("playback.seek_step must be positive")
	}
	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		bad("logging.level %q must be off, normal or verbose", c.Logging.Level)
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured level, Normal if unparseable.
func (c *Config) LogLevel() logger.Level {
	lvl, ok := logger.ParseLevel(c.Logging.Level)
	if !ok {
		return logger.LevelNormal
	}
	return lvl
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}
