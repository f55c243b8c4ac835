package config

import (
	"fmt"
	"time"

	"github.com/grovetools/uireload/command"
	"github.com/grovetools/uireload/errors"
)

// Retention bounds accepted for retention.max_artifacts.
const (
	MinArtifacts = 1
	MaxArtifacts = 20
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Plugin.Name == "" {
		return errors.New(errors.ErrCodeConfigValidation, "plugin.name cannot be empty")
	}
	if c.Plugin.OutputDir == "" {
		return errors.New(errors.ErrCodeConfigValidation, "plugin.output_dir cannot be empty")
	}

	if len(c.Watch.Dirs) == 0 {
		return errors.New(errors.ErrCodeConfigValidation, "watch.dirs must list at least one directory")
	}
	for _, dir := range c.Watch.Dirs {
		if dir == "" {
			return errors.New(errors.ErrCodeConfigValidation, "watch.dirs cannot contain an empty entry")
		}
	}

	if len(c.Build.Tool) == 0 || c.Build.Tool[0] == "" {
		return errors.New(errors.ErrCodeConfigValidation, "build.tool must name an executable")
	}
	if err := command.NewSafeBuilder().Validate("target", c.Build.Target); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "build.target is invalid").
			WithDetail("target", c.Build.Target)
	}

	durations := []struct {
		field string
		value string
	}{
		{"watch.debounce", c.Watch.Debounce},
		{"watch.poll_interval", c.Watch.PollInterval},
		{"build.daemon_dial_timeout", c.Build.DaemonDialTimeout},
		{"build.timeout", c.Build.Timeout},
	}
	for _, d := range durations {
		if err := validateDuration(d.field, d.value); err != nil {
			return err
		}
	}

	if c.Retention.MaxArtifacts < MinArtifacts || c.Retention.MaxArtifacts > MaxArtifacts {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("retention.max_artifacts must be between %d and %d", MinArtifacts, MaxArtifacts)).
			WithDetail("max_artifacts", c.Retention.MaxArtifacts)
	}

	return nil
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("%s is not a valid duration", field)).
			WithDetail(field, value)
	}
	if d <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be positive", field)).
			WithDetail(field, value)
	}
	return nil
}
