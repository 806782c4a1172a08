package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler prunes aged per-session slice directories from the pipeline's
// temp space. Each session writes its slices under its own subdirectory, so
// a sweep removes whole session directories whose contents have expired.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler builds a scheduler that sweeps tempDir every interval and
// removes session directories older than maxAge.
func NewScheduler(tempDir string, interval, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every tick until Stop is called.
func (s *Scheduler) Start() {
	s.Sweep()

	go func() {
		defer close(s.done)
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
	}()

	log.Printf("Cleanup scheduler started (interval %s, max age %s)", s.interval, s.maxAge)
}

// Stop halts the periodic sweeps and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	log.Println("Cleanup scheduler stopped")
}

// Sweep removes every session directory under tempDir whose newest file is
// older than the max age. Stray files directly under tempDir are removed
// under the same rule.
func (s *Scheduler) Sweep() {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cleanup sweep failed to read %s: %v", s.tempDir, err)
		}
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	for _, entry := range entries {
		path := filepath.Join(s.tempDir, entry.Name())

		if !entry.IsDir() {
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to remove stale file %s: %v", path, err)
				continue
			}
			removed++
			continue
		}

		newest, err := newestModTime(path)
		if err != nil {
			log.Printf("Failed to inspect session dir %s: %v", path, err)
			continue
		}
		if newest.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.Printf("Failed to remove session dir %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("Cleanup sweep removed %d expired entries from %s", removed, s.tempDir)
	}
}

// newestModTime reports the most recent modification time found anywhere
// under dir, falling back to the directory's own mtime when it is empty.
func newestModTime(dir string) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	newest := info.ModTime()

	err = filepath.Walk(dir, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.ModTime().After(newest) {
			newest = fi.ModTime()
		}
		return nil
	})
	return newest, err
}
