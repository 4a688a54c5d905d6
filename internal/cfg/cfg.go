package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"classy/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings wraps values that fail validation.
var ErrInvalidSettings = errors.New("configuration validation failed")

type Settings struct {
	LogLevel      string
	LogFormat     string
	PythonPath    string
	ModelTimeout  time.Duration
	RemoteRetries int
	MetricsFile   string
}

type ConfigFile struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Model struct {
		Python        string `yaml:"python"`
		Timeout       string `yaml:"timeout"`
		RemoteRetries *int   `yaml:"remoteRetries"`
	} `yaml:"model"`

	Metrics struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
}

// Overrides are command line values that win over every other source.
// Empty fields are ignored.
type Overrides struct {
	LogLevel    string
	LogFormat   string
	MetricsFile string
}

// Load reads settings from an optional .env file, an optional YAML file,
// the environment and overrides, in increasing order of precedence. An
// empty path falls back to CLASSY_CONFIG.
func Load(path string, overrides Overrides) (Settings, error) {
	if err := loadDotEnv(common.DefaultEnvFile); err != nil {
		return Settings{}, err
	}

	if path == "" {
		path = os.Getenv(common.EnvConfig)
	}

	var config ConfigFile
	if path != "" {
		var err error
		if config, err = loadFromYAML(path); err != nil {
			return Settings{}, err
		}
	}

	timeout, err := getDurationFromEnvOrConfig(common.EnvModelTimeout, config.Model.Timeout, common.DefaultModelTimeout)
	if err != nil {
		return Settings{}, err
	}

	retries := common.DefaultRemoteRetries
	if config.Model.RemoteRetries != nil {
		retries = *config.Model.RemoteRetries
	}
	retries, err = getIntOrDefault(common.EnvRemoteRetries, retries)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogFormat:     getEnvOrDefault(common.EnvLogFormat, orDefault(config.Log.Format, common.DefaultLogFormat)),
		PythonPath:    getEnvOrDefault(common.EnvPython, config.Model.Python),
		ModelTimeout:  timeout,
		RemoteRetries: retries,
		MetricsFile:   getEnvOrDefault(common.EnvMetricsFile, config.Metrics.File),
	}
	settings.LogLevel = orDefault(overrides.LogLevel, settings.LogLevel)
	settings.LogFormat = orDefault(overrides.LogFormat, settings.LogFormat)
	settings.MetricsFile = orDefault(overrides.MetricsFile, settings.MetricsFile)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	return settings, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (ConfigFile, error) {
	var config ConfigFile

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getDurationFromEnvOrConfig(key, configValue, defaultValue string) (time.Duration, error) {
	v := getEnvOrDefault(key, orDefault(configValue, defaultValue))
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid model timeout %q: %w", v, err)
	}
	return d, nil
}

// validateSettings checks value ranges.
func validateSettings(settings *Settings) error {
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	switch settings.LogFormat {
	case common.LogFormatConsole, common.LogFormatJSON:
	default:
		return fmt.Errorf("log format must be %q or %q, got %q", common.LogFormatConsole, common.LogFormatJSON, settings.LogFormat)
	}

	if settings.ModelTimeout < time.Second || settings.ModelTimeout > time.Hour {
		return fmt.Errorf("model timeout must be between 1s and 1h, got %v", settings.ModelTimeout)
	}

	if settings.RemoteRetries < 0 || settings.RemoteRetries > 10 {
		return fmt.Errorf("remote retries must be between 0 and 10, got %d", settings.RemoteRetries)
	}

	return nil
}
