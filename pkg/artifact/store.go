// Package artifact names, enumerates and retires versioned plugin builds in a
// single output directory.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/grovetools/uireload/logging"
	"github.com/sirupsen/logrus"
)

// stemTimeLayout gives stems a sortable YYYYMMDD_HHMMSS timestamp.
const stemTimeLayout = "20060102_150405"

// Artifact is one build output on disk. Identity is Path.
type Artifact struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Active  bool      `json:"active"`
}

// Name returns the file name of the artifact.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Naming holds the platform's shared library prefix and extension.
type Naming struct {
	Prefix    string
	Extension string
}

// PlatformNaming returns the shared library naming for goos.
func PlatformNaming(goos string) Naming {
	switch goos {
	case "windows":
		return Naming{Prefix: "", Extension: ".dll"}
	case "darwin", "ios":
		return Naming{Prefix: "lib", Extension: ".dylib"}
	default:
		return Naming{Prefix: "lib", Extension: ".so"}
	}
}

// Store manages the artifacts named <prefix><name>*<ext> under dir.
type Store struct {
	dir    string
	name   string
	naming Naming
	logger *logrus.Entry
	remove func(string) error
}

// Option configures a Store.
type Option func(*Store)

// WithNaming overrides the platform naming.
func WithNaming(n Naming) Option {
	return func(s *Store) { s.naming = n }
}

// WithLogger sets the logger used for retirement failures.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a store for artifacts of plugin name in dir.
func NewStore(dir, name string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		name:   name,
		naming: PlatformNaming(runtime.GOOS),
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("artifact")
	}
	return s
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// PathFor returns the artifact path a build with the given stem produces.
func (s *Store) PathFor(stem string) string {
	return filepath.Join(s.dir, s.naming.Prefix+stem+s.naming.Extension)
}

// Pattern returns the glob matching every artifact of this plugin.
func (s *Store) Pattern() string {
	return filepath.Join(s.dir, s.naming.Prefix+s.name+"*"+s.naming.Extension)
}

// NewStem returns a fresh output stem <name>_reload_<timestamp>. A _N suffix
// is appended when an artifact with the plain stem already exists.
func (s *Store) NewStem(now time.Time) string {
	base := fmt.Sprintf("%s_reload_%s", s.name, now.Format(stemTimeLayout))
	stem := base
	for n := 2; ; n++ {
		if _, err := os.Stat(s.PathFor(stem)); os.IsNotExist(err) {
			return stem
		}
		stem = fmt.Sprintf("%s_%d", base, n)
	}
}

// List returns every artifact, newest first. Ties on modification time are
// broken by path, descending. active marks the loaded artifact, if present.
func (s *Store) List(active string) ([]Artifact, error) {
	matches, err := filepath.Glob(s.Pattern())
	if err != nil {
		return nil, fmt.Errorf("invalid artifact pattern %s: %w", s.Pattern(), err)
	}

	artifacts := make([]Artifact, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			// Raced with a deletion or not a file.
			continue
		}
		artifacts = append(artifacts, Artifact{
			Path:    path,
			ModTime: info.ModTime(),
			Active:  active != "" && samePath(path, active),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if artifacts[i].ModTime.Equal(artifacts[j].ModTime) {
			return artifacts[i].Path > artifacts[j].Path
		}
		return artifacts[i].ModTime.After(artifacts[j].ModTime)
	})
	return artifacts, nil
}

// RetireResult reports what RetireOld did.
type RetireResult struct {
	Kept    []Artifact
	Removed []Artifact
	Failed  map[string]error
}

// RetireOld deletes every artifact beyond the newest keep, never the active
// one. If the active artifact ranks beyond keep it takes the last surviving
// slot, so at most keep artifacts remain. Deletion failures are logged and
// collected, never returned.
func (s *Store) RetireOld(keep int, active string) (RetireResult, error) {
	result := RetireResult{Failed: map[string]error{}}
	if keep < 1 {
		keep = 1
	}

	artifacts, err := s.List(active)
	if err != nil {
		return result, err
	}

	result.Kept = survivors(artifacts, keep)
	kept := make(map[string]bool, len(result.Kept))
	for _, a := range result.Kept {
		kept[a.Path] = true
	}

	for _, a := range artifacts {
		if kept[a.Path] {
			continue
		}
		if err := s.remove(a.Path); err != nil {
			s.logger.WithError(err).WithField("path", a.Path).Warn("Failed to remove old artifact")
			result.Failed[a.Path] = err
			continue
		}
		s.logger.WithField("path", a.Path).Debug("Removed old artifact")
		result.Removed = append(result.Removed, a)
	}
	return result, nil
}

// survivors picks the kept set from a newest-first listing. An active
// artifact older than the newest keep takes the last slot, so the kept set
// never grows past keep. The artifact it displaces is retired even though it
// is newer than the active one.
func survivors(artifacts []Artifact, keep int) []Artifact {
	if len(artifacts) <= keep {
		return artifacts
	}
	out := append([]Artifact(nil), artifacts[:keep]...)
	for _, a := range out {
		if a.Active {
			return out
		}
	}
	for _, a := range artifacts[keep:] {
		if a.Active {
			out[keep-1] = a
			break
		}
	}
	return out
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
