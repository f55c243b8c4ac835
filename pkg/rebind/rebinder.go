package rebind

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/sirupsen/logrus"
)

// Consumer is a long-lived object holding native callback registrations in
// the plugin. Bind runs on the host goroutine after every swap and must
// re-register everything the consumer needs with the new plugin.
type Consumer interface {
	Name() string
	Bind(p *uiplugin.Plugin, cbs *Callbacks) error
}

// Source is the published plugin plus its reload signal.
// capability.Manager implements it.
type Source interface {
	uiplugin.Source
	Generation() uint64
}

type binding struct {
	consumer Consumer
	cursor   uint64
}

// Rebinder tracks, per consumer, the last generation it bound to.
type Rebinder struct {
	src    Source
	cbs    *Callbacks
	logger *logrus.Entry

	mu       sync.Mutex
	bindings []*binding
}

// Option configures a Rebinder.
type Option func(*Rebinder)

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(r *Rebinder) { r.logger = l }
}

// New returns a rebinder dispatching native callbacks through cbs.
func New(src Source, cbs *Callbacks, opts ...Option) *Rebinder {
	r := &Rebinder{src: src, cbs: cbs}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewLogger("rebind")
	}
	return r
}

// Callbacks returns the callback set handed to consumers.
func (r *Rebinder) Callbacks() *Callbacks { return r.cbs }

// Add registers c. It is bound on the next Poll. Consumers bind in the order
// they were added.
func (r *Rebinder) Add(c Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, &binding{consumer: c})
}

// Stale reports whether any consumer lags the published generation.
func (r *Rebinder) Stale() bool {
	gen := r.src.Generation()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		if b.cursor != gen {
			return true
		}
	}
	return false
}

// Poll binds every stale consumer to the published plugin and returns how
// many were rebound. A consumer whose Bind fails keeps its old cursor and is
// retried on the next Poll. Poll never blocks on the coordinator.
func (r *Rebinder) Poll() (int, error) {
	if r.src.Generation() == 0 || !r.Stale() {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rebound := 0
	var errs []error
	err := uiplugin.With(r.src, func(p *uiplugin.Plugin) error {
		gen := p.Generation()
		for _, b := range r.bindings {
			if b.cursor == gen {
				continue
			}
			name := b.consumer.Name()
			if err := b.consumer.Bind(p, r.cbs); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"consumer":   name,
					"generation": gen,
				}).Warn("Consumer failed to rebind")
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			b.cursor = gen
			rebound++
			r.logger.WithFields(logrus.Fields{
				"consumer":   name,
				"generation": gen,
			}).Debug("Consumer rebound")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rebound, stderrors.Join(errs...)
}
