package logging

import (
	"os"
	"strings"

	"github.com/grovetools/uireload/config"
	"github.com/sirupsen/logrus"
)

// Output presets for format.preset.
const (
	PresetText   = "text"
	PresetSimple = "simple"
	PresetJSON   = "json"
)

// Terminal sink modes for format.stderr.
const (
	StderrAuto   = "auto"
	StderrAlways = "always"
	StderrNever  = "never"
)

// Config is the `logging:` section of uireload.yml.
//
//	logging:
//	  level: debug
//	  file:
//	    enabled: true
//	    path: ~/.cache/uireload/reload.log
//	  format:
//	    preset: simple
//	    stderr: always
type Config struct {
	Level        string   `yaml:"level"`
	ReportCaller bool     `yaml:"report_caller"`
	File         FileSink `yaml:"file"`
	Format       Format   `yaml:"format"`
}

// FileSink overrides the default per-component log file.
type FileSink struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Format controls record layout and where records go.
type Format struct {
	Preset           string `yaml:"preset"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	Stderr           string `yaml:"stderr"`
}

// loadConfig reads the logging section of the nearest uireload.yml and
// applies the UIRELOAD_LOG_* overrides. A missing or broken project config
// yields defaults; logging must never stop the tool from starting.
func loadConfig() Config {
	var cfg Config
	if projectCfg, err := config.LoadDefault(); err == nil {
		if err := projectCfg.UnmarshalExtension("logging", &cfg); err != nil {
			logrus.Warnf("Ignoring invalid 'logging' section: %v", err)
		}
	}
	if env := os.Getenv("UIRELOAD_LOG_LEVEL"); env != "" {
		cfg.Level = env
	}
	if os.Getenv("UIRELOAD_LOG_CALLER") == "true" {
		cfg.ReportCaller = true
	}
	return cfg
}

// level parses Level, falling back to info.
func (c Config) level() logrus.Level {
	if c.Level == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(c.Level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// formatter builds the logrus formatter for the configured preset.
func (c Config) formatter() logrus.Formatter {
	switch c.Format.Preset {
	case PresetJSON:
		return &logrus.JSONFormatter{}
	case PresetSimple:
		return &TextFormatter{DisableTimestamp: true, DisableComponent: true}
	default:
		return &TextFormatter{
			DisableTimestamp: c.Format.DisableTimestamp,
			DisableComponent: c.Format.DisableComponent,
		}
	}
}
