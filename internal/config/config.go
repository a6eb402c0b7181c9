package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultConfigFile is the configuration path used when none is given.
	DefaultConfigFile = "config.yml"
	// DefaultEnvFile is the optional dotenv overlay read before environment overrides.
	DefaultEnvFile = ".env"

	sectionLogging   = "Logging"
	sectionArtifacts = "Artifacts"
)

// requiredKeys lists, in report order, every key the YAML file must define.
var requiredKeys = []struct {
	section string
	keys    []string
}{
	{section: sectionLogging, keys: []string{"LogFileName", "LogDir", "LogStorageDuration", "LogLevel"}},
	{section: sectionArtifacts, keys: []string{"ArtifactsDirPath"}},
}

// Config aggregates the process-wide settings resolved at startup.
// It is loaded once and never mutated afterwards.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"Logging"`
	Artifacts ArtifactsConfig `mapstructure:"Artifacts"`
}

// LoggingConfig mirrors the Logging section of the configuration file.
type LoggingConfig struct {
	// FileName is the live log file, created in the working directory.
	FileName string `mapstructure:"LogFileName" validate:"required,basename"`
	// Dir receives rotated log files.
	Dir string `mapstructure:"LogDir" validate:"required"`
	// StorageDuration is the number of rotated files kept; 0 keeps all of them.
	StorageDuration int    `mapstructure:"LogStorageDuration" validate:"gte=0"`
	Level           string `mapstructure:"LogLevel" validate:"required,oneof=debug info warn warning error critical dpanic panic fatal"`
}

// ArtifactsConfig mirrors the Artifacts section of the configuration file.
type ArtifactsConfig struct {
	DirPath string `mapstructure:"ArtifactsDirPath" validate:"required"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile   string
	EnvFile      string
	LogLevel     *string
	ArtifactsDir *string
}

// Load resolves configuration with precedence:
// CLI flags > Environment variables > .env file > YAML config
// The file is read with the strict ReadDocument, so an unreadable or
// malformed file fails startup instead of yielding a nil Document.
func Load(overrides *CLIOverrides) (Config, error) {
	path := DefaultConfigFile
	if overrides != nil && overrides.ConfigFile != "" {
		path = overrides.ConfigFile
	}

	doc, err := ReadDocument(path)
	if err != nil {
		return Config{}, fmt.Errorf("load YAML config: %w", err)
	}

	cfg, err := fromDocument(doc)
	if err != nil {
		return Config{}, err
	}

	envFile := DefaultEnvFile
	if overrides != nil && overrides.EnvFile != "" {
		envFile = overrides.EnvFile
	}
	lookup, err := envLookup(envFile)
	if err != nil {
		return Config{}, err
	}

	applyEnvConfig(&cfg, lookup)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// fromDocument extracts the typed sections from a parsed document.
// Absent keys are reported before any decoding happens.
func fromDocument(doc Document) (Config, error) {
	for _, required := range requiredKeys {
		section, ok := doc.Section(required.section)
		if !ok {
			// A section whose keys were all removed parses as null.
			if value, present := doc[required.section]; present && value == nil {
				return Config{}, fmt.Errorf("%w: %s", ErrMissingKey, qualify(required.section, required.keys))
			}
			return Config{}, fmt.Errorf("%w: %s", ErrMissingKey, required.section)
		}
		for _, key := range required.keys {
			if value, ok := section[key]; !ok || value == nil {
				return Config{}, fmt.Errorf("%w: %s.%s", ErrMissingKey, required.section, key)
			}
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &cfg,
		ErrorUnset: true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func qualify(section string, keys []string) string {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, section+"."+key)
	}
	return strings.Join(names, ", ")
}

// envLookup returns a lookup that prefers the process environment and falls
// back to the dotenv file. A missing dotenv file is not an error.
func envLookup(envFile string) (func(string) string, error) {
	dotenv := map[string]string{}
	if _, err := os.Stat(envFile); err == nil {
		values, readErr := godotenv.Read(envFile)
		if readErr != nil {
			return nil, fmt.Errorf("read env file %s: %w", envFile, readErr)
		}
		dotenv = values
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat env file %s: %w", envFile, err)
	}

	return func(key string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		return strings.TrimSpace(dotenv[key])
	}, nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config, lookup func(string) string) {
	if level := lookup("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if dir := lookup("LOG_DIR"); dir != "" {
		cfg.Logging.Dir = dir
	}

	if dir := lookup("ARTIFACTS_DIR_PATH"); dir != "" {
		cfg.Artifacts.DirPath = dir
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.Logging.Level = *overrides.LogLevel
	}

	if overrides.ArtifactsDir != nil && *overrides.ArtifactsDir != "" {
		cfg.Artifacts.DirPath = *overrides.ArtifactsDir
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// The live log file sits in the working directory, so only a bare name is accepted.
	must(v.RegisterValidation("basename", isBaseName))
	return v
}

func isBaseName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "." && name != ".." && filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("config: register validation: %v", err))
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
