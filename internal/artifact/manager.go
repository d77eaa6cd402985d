// Package artifact manages the transient files and buffers created while a
// request is transcribed. Every request gets its own Scope with a private
// directory under the manager's base directory, so concurrent requests never
// collide on file names.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// scopePrefix marks scope directories so the sweeper never touches anything
// else living in the base directory.
const scopePrefix = "req-"

// Manager hands out per-request scopes and keeps process-wide counters.
type Manager struct {
	baseDir string
	log     zerolog.Logger

	mu   sync.Mutex
	live map[string]struct{}

	registered      atomic.Int64
	released        atomic.Int64
	cleanupWarnings atomic.Int64
}

// ManagerStats is a snapshot of the manager counters.
type ManagerStats struct {
	LiveScopes      int   `json:"live_scopes"`
	Registered      int64 `json:"registered"`
	Released        int64 `json:"released"`
	CleanupWarnings int64 `json:"cleanup_warnings"`
}

// NewManager creates the base directory if needed. An empty baseDir means
// the system temp directory.
func NewManager(baseDir string, log zerolog.Logger) (*Manager, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "audioscribe")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", baseDir, err)
	}
	return &Manager{
		baseDir: baseDir,
		log:     log,
		live:    make(map[string]struct{}),
	}, nil
}

// BaseDir returns the directory that holds all scope directories.
func (m *Manager) BaseDir() string { return m.baseDir }

// Open starts a new scope. requestID is only used for log correlation.
func (m *Manager) Open(requestID string) (*Scope, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.baseDir, scopePrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scope dir: %w", err)
	}

	m.mu.Lock()
	m.live[id] = struct{}{}
	m.mu.Unlock()

	return &Scope{
		id:      id,
		dir:     dir,
		mgr:     m,
		log:     m.log.With().Str("scope", id).Str("request_id", requestID).Logger(),
		entries: make(map[string]*entry),
	}, nil
}

func (m *Manager) closeScope(id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
}

func (m *Manager) isLive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[id]
	return ok
}

// LiveScopes returns the number of scopes not yet closed.
func (m *Manager) LiveScopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		LiveScopes:      m.LiveScopes(),
		Registered:      m.registered.Load(),
		Released:        m.released.Load(),
		CleanupWarnings: m.cleanupWarnings.Load(),
	}
}
