package cmd

import (
	"github.com/grovetools/uireload/config"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/artifact"
	"github.com/grovetools/uireload/pkg/build"
)

func newStore(cfg *config.Config) *artifact.Store {
	return artifact.NewStore(cfg.Plugin.OutputDir, cfg.Plugin.Name,
		artifact.WithLogger(logging.NewLogger("artifact")))
}

func newSubprocessBuilder(cfg *config.Config) *build.SubprocessBuilder {
	return build.NewSubprocessBuilder(cfg.Build.Tool, cfg.Build.WorkDir, nil, logging.NewLogger("build-tool"))
}

// newOrchestrator builds through the daemon unless it is disabled, falling
// back to the build tool.
func newOrchestrator(cfg *config.Config) *build.Orchestrator {
	logger := logging.NewLogger("build")
	opts := []build.Option{
		build.WithTimeout(cfg.BuildTimeout()),
		build.WithLogger(logger),
	}
	if !cfg.Build.DisableDaemon {
		opts = append(opts, build.WithDaemon(
			build.NewDaemonBuilder(cfg.Build.DaemonAddr, cfg.Build.Target, cfg.DaemonDialTimeout(), logger)))
	}
	return build.NewOrchestrator(newSubprocessBuilder(cfg), opts...)
}
