package reload

import (
	"time"

	"github.com/grovetools/uireload/pkg/artifact"
	"github.com/sirupsen/logrus"
)

// Status is the coordinator's view of the last operation's outcome.
type Status int

const (
	StatusUnknown Status = iota
	StatusIdle
	StatusRebuilding
	StatusBuildFailed
	StatusReloadSuccessful
	StatusPluginMissing
	StatusLoadingPlugin
)

// String returns a stable machine-readable name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRebuilding:
		return "rebuilding"
	case StatusBuildFailed:
		return "build_failed"
	case StatusReloadSuccessful:
		return "reload_successful"
	case StatusPluginMissing:
		return "plugin_missing"
	case StatusLoadingPlugin:
		return "loading_plugin"
	default:
		return "unknown"
	}
}

// Label returns the status text shown to the developer.
func (s Status) Label() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRebuilding:
		return "Rebuilding..."
	case StatusBuildFailed:
		return "Build Failed"
	case StatusReloadSuccessful:
		return "Last Reload Successful"
	case StatusPluginMissing:
		return "Plugin Missing"
	case StatusLoadingPlugin:
		return "Loading Plugin..."
	default:
		return "Unknown"
	}
}

// Failed reports whether s is a failure outcome.
func (s Status) Failed() bool {
	return s == StatusBuildFailed || s == StatusPluginMissing
}

// Busy reports whether a cycle is in progress.
func (s Status) Busy() bool {
	return s == StatusRebuilding || s == StatusLoadingPlugin
}

// LogEntry is one line of the reload log.
type LogEntry struct {
	Time    time.Time
	Level   logrus.Level
	Message string
	Cycle   string
}

// State is a point-in-time copy of the coordinator's state.
type State struct {
	CurrentPath   string
	WatchDirs     []string
	Debounce      time.Duration
	MaxArtifacts  int
	AutoReload    bool
	Status        Status
	LastReload    time.Time
	ABIDescriptor string
	Generation    uint64
	LastError     error
}

// CurrentName returns the file name of the loaded artifact.
func (s State) CurrentName() string {
	if s.CurrentPath == "" {
		return ""
	}
	return artifact.Artifact{Path: s.CurrentPath}.Name()
}
