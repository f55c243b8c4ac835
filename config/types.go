package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// PluginConfig describes the native artifact being reloaded.
type PluginConfig struct {
	Name      string `yaml:"name" toml:"name" jsonschema:"description=Base name of the plugin artifact (e.g. stratum-ui)"`
	OutputDir string `yaml:"output_dir" toml:"output_dir" jsonschema:"description=Build output directory scanned for artifacts"`
	Initial   string `yaml:"initial,omitempty" toml:"initial,omitempty" jsonschema:"description=Artifact to load at startup before the first rebuild"`
}

// WatchConfig describes the source directories that trigger rebuilds.
type WatchConfig struct {
	Dirs         []string `yaml:"dirs" toml:"dirs" jsonschema:"description=Directories watched recursively for changes,minItems=1"`
	Ignore       []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Patterns (relative to each watched dir) that never trigger a rebuild"`
	Debounce     string   `yaml:"debounce,omitempty" toml:"debounce,omitempty" jsonschema:"description=Quiet period before a rebuild fires (e.g. 300ms)"`
	PollInterval string   `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" jsonschema:"description=Debounce poll tick (default 50ms)"`
}

// BuildConfig describes how a rebuild is requested.
type BuildConfig struct {
	Tool              []string `yaml:"tool" toml:"tool" jsonschema:"description=Build tool argv; --dynamic --output-name <stem> is appended"`
	WorkDir           string   `yaml:"work_dir,omitempty" toml:"work_dir,omitempty" jsonschema:"description=Working directory for the build tool"`
	Target            string   `yaml:"target,omitempty" toml:"target,omitempty" jsonschema:"description=Platform id sent to the build daemon (e.g. desktop)"`
	DaemonAddr        string   `yaml:"daemon_addr,omitempty" toml:"daemon_addr,omitempty" jsonschema:"description=host:port of the build daemon"`
	DaemonDialTimeout string   `yaml:"daemon_dial_timeout,omitempty" toml:"daemon_dial_timeout,omitempty" jsonschema:"description=Connect timeout for the build daemon"`
	DisableDaemon     bool     `yaml:"disable_daemon,omitempty" toml:"disable_daemon,omitempty" jsonschema:"description=Always use the subprocess build"`
	Timeout           string   `yaml:"timeout,omitempty" toml:"timeout,omitempty" jsonschema:"description=Upper bound for a single build"`
}

// RetentionConfig controls artifact culling.
type RetentionConfig struct {
	MaxArtifacts int `yaml:"max_artifacts,omitempty" toml:"max_artifacts,omitempty" jsonschema:"description=Number of artifacts kept on disk,minimum=1,maximum=20"`
}

// Config is the root of uireload.yml.
type Config struct {
	Version    string          `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version"`
	Plugin     PluginConfig    `yaml:"plugin" toml:"plugin" jsonschema:"description=Plugin artifact settings"`
	Watch      WatchConfig     `yaml:"watch" toml:"watch" jsonschema:"description=File watching settings"`
	Build      BuildConfig     `yaml:"build" toml:"build" jsonschema:"description=Build orchestration settings"`
	Retention  RetentionConfig `yaml:"retention,omitempty" toml:"retention,omitempty" jsonschema:"description=Artifact retention settings"`
	AutoReload *bool           `yaml:"auto_reload,omitempty" toml:"auto_reload,omitempty" jsonschema:"description=Rebuild automatically on change (default: true)"`

	// Extensions holds every top-level section not described above, keyed by name.
	Extensions map[string]interface{} `yaml:"-" toml:"-" jsonschema:"-" mapstructure:"-"`

	// Path is the file the configuration was loaded from, if any.
	Path string `yaml:"-" toml:"-" jsonschema:"-" mapstructure:"-"`
}

// knownSections lists the top-level keys decoded into typed fields.
var knownSections = map[string]bool{
	"version":     true,
	"plugin":      true,
	"watch":       true,
	"build":       true,
	"retention":   true,
	"auto_reload": true,
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Plugin.Name == "" {
		c.Plugin.Name = "stratum-ui"
	}
	if c.Plugin.OutputDir == "" {
		c.Plugin.OutputDir = "build/desktop"
	}
	if len(c.Watch.Dirs) == 0 {
		c.Watch.Dirs = []string{"src", "include"}
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "300ms"
	}
	if c.Watch.PollInterval == "" {
		c.Watch.PollInterval = "50ms"
	}
	if len(c.Build.Tool) == 0 {
		c.Build.Tool = []string{"python3", "build.py"}
	}
	if c.Build.Target == "" {
		c.Build.Target = "desktop"
	}
	if c.Build.DaemonAddr == "" {
		c.Build.DaemonAddr = "127.0.0.1:9123"
	}
	if c.Build.DaemonDialTimeout == "" {
		c.Build.DaemonDialTimeout = "250ms"
	}
	if c.Build.Timeout == "" {
		c.Build.Timeout = "5m"
	}
	if c.Retention.MaxArtifacts == 0 {
		c.Retention.MaxArtifacts = 5
	}
	if c.AutoReload == nil {
		trueVal := true
		c.AutoReload = &trueVal
	}
}

// DebounceInterval returns the parsed watch.debounce value.
func (c *Config) DebounceInterval() time.Duration {
	return mustDuration(c.Watch.Debounce)
}

// PollTick returns the parsed watch.poll_interval value.
func (c *Config) PollTick() time.Duration {
	return mustDuration(c.Watch.PollInterval)
}

// BuildTimeout returns the parsed build.timeout value.
func (c *Config) BuildTimeout() time.Duration {
	return mustDuration(c.Build.Timeout)
}

// DaemonDialTimeout returns the parsed build.daemon_dial_timeout value.
func (c *Config) DaemonDialTimeout() time.Duration {
	return mustDuration(c.Build.DaemonDialTimeout)
}

// AutoReloadEnabled reports the effective auto_reload value.
func (c *Config) AutoReloadEnabled() bool {
	return c.AutoReload == nil || *c.AutoReload
}

// mustDuration parses a duration that Validate has already checked.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded uireload.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
