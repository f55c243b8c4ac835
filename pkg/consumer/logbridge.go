package consumer

import (
	"fmt"
	"sync"

	"github.com/grovetools/uireload/logging"
	"github.com/grovetools/uireload/pkg/rebind"
	"github.com/grovetools/uireload/pkg/uiplugin"
	"github.com/sirupsen/logrus"
)

// DefaultLogCapacity is the number of plugin log lines retained.
const DefaultLogCapacity = 10000

// LogBridge collects the plugin's log output into a bounded buffer and
// mirrors it to the "plugin" logger.
type LogBridge struct {
	capacity int
	logger   *logrus.Entry
	reg      registration

	mu    sync.Mutex
	lines []string
}

// LogBridgeOption configures a LogBridge.
type LogBridgeOption func(*LogBridge)

// WithLogBridgeLogger sets the logger plugin lines are mirrored to.
func WithLogBridgeLogger(l *logrus.Entry) LogBridgeOption {
	return func(b *LogBridge) { b.logger = l }
}

// NewLogBridge returns a bridge keeping at most capacity lines.
func NewLogBridge(capacity int, opts ...LogBridgeOption) *LogBridge {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	b := &LogBridge{capacity: capacity}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewLogger("plugin")
	}
	return b
}

// Name implements rebind.Consumer.
func (b *LogBridge) Name() string { return "logs" }

// Bind implements rebind.Consumer.
func (b *LogBridge) Bind(p *uiplugin.Plugin, cbs *rebind.Callbacks) error {
	if !p.Has(uiplugin.SymRegisterLogCallback) {
		b.logger.WithField("path", p.Path()).Debug("Plugin has no log hook")
		return nil
	}
	return p.RegisterLogCallback(cbs.Log, b.reg.handle(cbs, b))
}

// ReceiveLog implements rebind.LogSink.
func (b *LogBridge) ReceiveLog(level uiplugin.LogLevel, msg string) {
	line := fmt.Sprintf("[%s] %s", level, msg)

	b.mu.Lock()
	if len(b.lines) >= b.capacity {
		drop := len(b.lines) - b.capacity + 1
		b.lines = append(b.lines[:0], b.lines[drop:]...)
	}
	b.lines = append(b.lines, line)
	b.mu.Unlock()

	b.logger.Log(logrusLevel(level), msg)
}

// TakeLogs returns and clears the buffered lines.
func (b *LogBridge) TakeLogs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.lines
	b.lines = nil
	return out
}

// Len returns the number of buffered lines.
func (b *LogBridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Close stops accepting lines from any plugin.
func (b *LogBridge) Close() {
	b.reg.release()
}

func logrusLevel(l uiplugin.LogLevel) logrus.Level {
	switch l {
	case uiplugin.LogTrace:
		return logrus.TraceLevel
	case uiplugin.LogDebug:
		return logrus.DebugLevel
	case uiplugin.LogWarn:
		return logrus.WarnLevel
	case uiplugin.LogError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
