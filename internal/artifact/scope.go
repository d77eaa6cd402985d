package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/snarg/audioscribe/internal/metrics"
)

// Stats counts a scope's artifacts.
type Stats struct {
	Registered int `json:"registered"`
	Released   int `json:"released"`
	Pending    int `json:"pending"`
}

// Scope tracks every transient artifact created while serving one request.
// Each registered artifact is released exactly once, either early through
// Release or at the latest by Close. Release failures are logged and never
// returned.
type Scope struct {
	id  string
	dir string
	mgr *Manager
	log zerolog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	order    []string
	released int
	closed   bool
}

type entry struct {
	name    string
	path    string // empty for in-memory artifacts
	release func() error
	done    bool
}

// ID returns the scope identifier.
func (s *Scope) ID() string { return s.id }

// Dir returns the scope's private directory.
func (s *Scope) Dir() string { return s.dir }

// Path registers a file artifact named name inside the scope directory and
// returns its path. The file itself is not created; whoever writes it may
// fail halfway and the path is still cleaned up.
func (s *Scope) Path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if err := s.add(&entry{name: name, path: path}); err != nil {
		return "", err
	}
	return path, nil
}

// Create registers a file artifact and opens it for writing.
func (s *Scope) Create(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
}

// Track registers an in-memory artifact. release is called exactly once.
func (s *Scope) Track(name string, release func() error) error {
	if release == nil {
		release = func() error { return nil }
	}
	return s.add(&entry{name: name, release: release})
}

func (s *Scope) add(e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("artifact scope closed")
	}
	if _, ok := s.entries[e.name]; ok {
		return fmt.Errorf("artifact %q already registered", e.name)
	}
	s.entries[e.name] = e
	s.order = append(s.order, e.name)
	s.mgr.registered.Add(1)
	metrics.ArtifactsRegisteredTotal.Inc()
	return nil
}

// Release frees one artifact ahead of Close. Releasing an unknown or already
// released artifact is a no-op.
func (s *Scope) Release(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	if !ok || e.done {
		s.mu.Unlock()
		return
	}
	e.done = true
	s.released++
	s.mu.Unlock()

	s.free(e)
}

// Close releases every artifact still registered, newest first, and removes
// the scope directory. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var pending []*entry
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		if !e.done {
			e.done = true
			s.released++
			pending = append(pending, e)
		}
	}
	s.mu.Unlock()

	for _, e := range pending {
		s.free(e)
	}

	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		// Something unregistered landed in the directory.
		s.warn(err, "scope dir not empty, removing recursively")
		if err := os.RemoveAll(s.dir); err != nil {
			s.warn(err, "failed to remove scope dir")
		}
	}
	s.mgr.closeScope(s.id)

	s.log.Debug().
		Int("registered", len(s.order)).
		Int("released", s.released).
		Msg("artifact scope closed")
}

// Stats returns registered/released counts.
func (s *Scope) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Registered: len(s.order),
		Released:   s.released,
		Pending:    len(s.order) - s.released,
	}
}

func (s *Scope) free(e *entry) {
	s.mgr.released.Add(1)
	metrics.ArtifactsReleasedTotal.Inc()

	var err error
	if e.path != "" {
		err = os.Remove(e.path)
		if os.IsNotExist(err) {
			// Registered but never written (e.g. transcoder failed early).
			s.log.Debug().Str("artifact", e.name).Msg("artifact already gone")
			return
		}
	} else {
		err = e.release()
	}
	if err != nil {
		s.warn(err, "failed to release artifact "+e.name)
	}
}

// warn records a cleanup warning. Cleanup problems never reach the caller.
func (s *Scope) warn(err error, msg string) {
	s.mgr.cleanupWarnings.Add(1)
	metrics.CleanupWarningsTotal.Inc()
	s.log.Warn().Err(err).Str("scope", s.id).Msg(msg)
}
