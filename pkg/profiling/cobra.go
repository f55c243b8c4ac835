package profiling

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// CobraProfiler wires --timing and --cpu-profile into a command tree.
type CobraProfiler struct {
	cpuProfilePath string
	timing         bool

	cpuFile  *os.File
	recorder *Recorder
	span     *Span
}

// NewCobraProfiler returns a profiler with no flags bound yet.
func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// AddFlags registers the persistent profiling flags on cmd.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write a CPU profile to `file`")
	cmd.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print a timing summary on exit")
}

// Attach installs PreRun and PostRun as cmd's persistent hooks.
func (p *CobraProfiler) Attach(cmd *cobra.Command) {
	p.AddFlags(cmd)
	cmd.PersistentPreRunE = p.PreRun
	cmd.PersistentPostRun = p.PostRun
}

// PreRun starts the CPU profile and, with --timing, a span for the command
// that subcommands reach through cmd.Context().
func (p *CobraProfiler) PreRun(cmd *cobra.Command, _ []string) error {
	if p.timing {
		p.recorder = NewRecorder(nil)
		p.span = p.recorder.Root().Child(cmd.CommandPath())
		cmd.SetContext(WithSpan(cmd.Context(), p.span))
	}
	if p.cpuProfilePath == "" {
		return nil
	}
	f, err := os.Create(p.cpuProfilePath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// PostRun stops the CPU profile and prints the timing summary to stderr.
// Cobra skips it when RunE fails.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, _ []string) {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
		fmt.Fprintf(cmd.ErrOrStderr(), "CPU profile written to %s\n", p.cpuProfilePath)
	}
	if p.recorder != nil {
		p.span.Stop()
		p.recorder.WriteSummary(cmd.ErrOrStderr())
		p.recorder = nil
	}
}
