package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/pkg/paths"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configNames lists the project config file names in lookup order.
var configNames = []string{
	"uireload.yml",
	"uireload.yaml",
	".uireload.yml",
	".uireload.yaml",
	"uireload.toml",
}

// Load reads and parses a uireload configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytesFormat(data, formatFor(path))
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// LoadDefault loads configuration starting from the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging:
// 1. Global config ($XDG_CONFIG_HOME/uireload/uireload.yml) - base layer
// 2. Project config (uireload.yml, found walking up from startDir) - overrides global
//
// A missing project config is not an error; defaults apply.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	merged := map[string]interface{}{}

	if globalPath := paths.GlobalConfigPath(); globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			raw, err := readRaw(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
			} else {
				merged = mergeRaw(merged, raw)
			}
		}
	}

	projectPath, err := FindConfigFile(startDir)
	if err == nil {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		raw, err := readRaw(projectPath)
		if err != nil {
			return nil, err
		}
		merged = mergeRaw(merged, raw)
	} else if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		return nil, err
	} else {
		logger.WithField("searchPath", startDir).Debug("No project configuration found, using defaults")
	}

	cfg, err := fromRaw(merged)
	if err != nil {
		return nil, err
	}
	cfg.Path = projectPath
	resolvePaths(cfg, projectPath, startDir)

	logger.Debug("Configuration loaded and validated successfully")
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}

	return cfg, nil
}

// LoadFromBytes parses YAML configuration from byte array
func LoadFromBytes(data []byte) (*Config, error) {
	return LoadFromBytesFormat(data, "yaml")
}

// LoadFromBytesFormat parses configuration in the given format ("yaml" or "toml").
func LoadFromBytesFormat(data []byte, format string) (*Config, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, err
	}
	return fromRaw(raw)
}

// fromRaw validates a raw document, decodes the typed sections and applies defaults.
func fromRaw(raw map[string]interface{}) (*Config, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	known := map[string]interface{}{}
	for key, value := range raw {
		if knownSections[key] {
			known[key] = value
			continue
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]interface{})
		}
		cfg.Extensions[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create mapstructure decoder")
	}
	if err := decoder.Decode(known); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readRaw(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	raw, err := decodeRaw(data, formatFor(path))
	if err != nil {
		if reloadErr, ok := err.(*errors.ReloadError); ok {
			return nil, reloadErr.WithDetail("path", path)
		}
		return nil, err
	}
	return raw, nil
}

func decodeRaw(data []byte, format string) (map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))
	raw := map[string]interface{}{}

	switch format {
	case "toml":
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
	default:
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	}

	// Normalize to JSON types so the schema validator and mapstructure
	// see the same shapes regardless of the source format.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration is not representable as JSON")
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to normalize configuration")
	}
	return out, nil
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// resolvePaths makes relative directories absolute against the directory
// holding the project config, or startDir when no file was found.
func resolvePaths(cfg *Config, projectPath, startDir string) {
	base := startDir
	if projectPath != "" {
		base = filepath.Dir(projectPath)
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	cfg.Plugin.OutputDir = abs(cfg.Plugin.OutputDir)
	cfg.Plugin.Initial = abs(cfg.Plugin.Initial)
	for i, dir := range cfg.Watch.Dirs {
		cfg.Watch.Dirs[i] = abs(dir)
	}
	if cfg.Build.WorkDir == "" {
		cfg.Build.WorkDir = base
	} else {
		cfg.Build.WorkDir = abs(cfg.Build.WorkDir)
	}
}

// FindConfigFile searches for uireload configuration files from startDir up
// to the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
