package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// Sweeper removes scope directories left behind by a previous process that
// died mid-request. Live scopes are never touched.
type Sweeper struct {
	mgr      *Manager
	ttl      time.Duration
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper that removes orphaned scopes older than ttl.
func NewSweeper(mgr *Manager, ttl time.Duration, log zerolog.Logger) *Sweeper {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		mgr:      mgr,
		ttl:      ttl,
		interval: interval,
		log:      log.With().Str("component", "artifact-sweeper").Logger(),
		stop:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Sweeper) loop() {
	// Run once on startup to clear leftovers from a crash
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Sweep makes one pass over the base directory and returns the number of
// scope directories removed.
func (s *Sweeper) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-s.ttl)
	entries, err := os.ReadDir(s.mgr.BaseDir())
	if err != nil {
		s.log.Warn().Err(err).Msg("sweep: read base dir")
		return 0
	}

	var removed int
	var freed int64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), scopePrefix) {
			continue
		}
		id := strings.TrimPrefix(e.Name(), scopePrefix)
		if s.mgr.isLive(id) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.mgr.BaseDir(), e.Name())
		size := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			s.mgr.cleanupWarnings.Add(1)
			s.log.Warn().Err(err).Str("dir", path).Msg("failed to remove orphaned scope")
			continue
		}
		removed++
		freed += size
	}

	if removed > 0 {
		s.log.Info().
			Int("removed", removed).
			Str("freed", humanizeBytes(freed)).
			Msg("orphaned artifact scopes swept")
	}
	return removed
}

func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

func humanizeBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
