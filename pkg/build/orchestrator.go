package build

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/grovetools/uireload/command"
	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// Builder runs one build for an output stem.
type Builder interface {
	Build(ctx context.Context, stem string) error
}

// Orchestrator tries the daemon first on every call and falls back to the
// subprocess when the daemon cannot give a verdict.
type Orchestrator struct {
	daemon     Builder
	subprocess Builder
	validator  *command.SafeBuilder
	timeout    time.Duration
	logger     *logrus.Entry
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDaemon sets the daemon path. A nil builder disables it.
func WithDaemon(b Builder) Option {
	return func(o *Orchestrator) { o.daemon = b }
}

// WithTimeout bounds every build. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator returns an orchestrator falling back to subprocess.
func NewOrchestrator(subprocess Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{subprocess: subprocess, validator: command.NewSafeBuilder()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("build")
	}
	return o
}

// RunBuild builds stem and reports which strategy produced the verdict. The
// stem is checked before either strategy is tried.
func (o *Orchestrator) RunBuild(ctx context.Context, stem string) (Strategy, error) {
	start := time.Now()
	logger := o.logger.WithField("stem", stem)

	if err := o.validator.Validate("outputStem", stem); err != nil {
		strategy := StrategySubprocess
		if o.daemon != nil {
			strategy = StrategyDaemon
		}
		return strategy, errors.Wrap(err, errors.ErrCodeInvalidInput, "refusing to build").WithDetail("stem", stem)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	span, ctx := profiling.Start(ctx, "build "+stem)
	defer span.Stop()

	if o.daemon != nil {
		attempt := span.Child("daemon")
		err := o.daemon.Build(ctx, stem)
		attempt.Stop()
		switch {
		case err == nil:
			logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("Build finished via daemon")
			return StrategyDaemon, nil
		case isContextErr(err):
			return StrategyDaemon, o.contextError(stem, err)
		case !errors.Is(err, errors.ErrCodeDaemonUnavailable):
			return StrategyDaemon, err
		default:
			logger.WithError(err).Debug("Build daemon unavailable, falling back to subprocess")
		}
	}

	if o.subprocess == nil {
		return StrategySubprocess, errors.BuildLaunch("", stderrors.New("no subprocess builder configured"))
	}
	attempt := span.Child("subprocess")
	err := o.subprocess.Build(ctx, stem)
	attempt.Stop()
	if err != nil {
		if isContextErr(err) {
			return StrategySubprocess, o.contextError(stem, err)
		}
		return StrategySubprocess, err
	}
	logger.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("Build finished via subprocess")
	return StrategySubprocess, nil
}

func (o *Orchestrator) contextError(stem string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.BuildTimeout(stem, o.timeout.String())
	}
	return errors.Wrap(err, errors.ErrCodeBuildFailure, "build cancelled").WithDetail("stem", stem)
}
