package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/spf13/afero"
)

// Removal reasons used for metrics labels.
const (
	ReasonServed  = "served"
	ReasonExpired = "expired"
	ReasonCleared = "cleared"
	ReasonFailed  = "failed"
)

// tempPrefix names the directory created when no root is configured.
const tempPrefix = "ytdl_"

// ErrOutsideRoot is returned when a path does not belong to the staging area.
var ErrOutsideRoot = errors.New("path is outside the staging directory")

// Area is the directory downloads are staged in. Every download gets its own
// job directory so concurrent jobs never share files.
type Area struct {
	fs    afero.Fs
	root  string
	owned bool
	now   func() time.Time

	mu     sync.Mutex
	active map[string]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New opens the staging area at root, creating it if needed. When root is
// empty a fresh temporary directory is created and removed again by Cleanup.
func New(fs afero.Fs, root string) (*Area, error) {
	owned := false
	if root == "" {
		dir, err := afero.TempDir(fs, "", tempPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %w", err)
		}
		root = dir
		owned = true
	} else if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory %s: %w", root, err)
	}

	return &Area{
		fs:     fs,
		root:   filepath.Clean(root),
		owned:  owned,
		now:    time.Now,
		active: make(map[string]struct{}),
		stopCh: make(chan struct{}),
	}, nil
}

// Root returns the staging directory.
func (a *Area) Root() string {
	return a.root
}

// Owned reports whether the directory was created by New and will be removed on Cleanup.
func (a *Area) Owned() bool {
	return a.owned
}

// Fs returns the filesystem the area lives on.
func (a *Area) Fs() afero.Fs {
	return a.fs
}

// NewJobDir creates and returns the directory for one download job. The
// directory is protected from sweeps until Finish or Release is called.
func (a *Area) NewJobDir(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid job id %q", id)
	}

	dir := filepath.Join(a.root, id)

	// Registered first so a concurrent Clear or Sweep never sees it unprotected.
	a.mu.Lock()
	a.active[dir] = struct{}{}
	a.mu.Unlock()

	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		a.mu.Lock()
		delete(a.active, dir)
		a.mu.Unlock()
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}

	return dir, nil
}

// Finish marks a job directory as no longer in use. Its files stay on disk
// until the janitor expires them.
func (a *Area) Finish(dir string) {
	a.mu.Lock()
	delete(a.active, filepath.Clean(dir))
	a.mu.Unlock()
}

// Release removes a job directory and everything in it.
func (a *Area) Release(dir, reason string) (int64, error) {
	dir = filepath.Clean(dir)
	if !a.contains(dir) {
		return 0, fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}

	a.Finish(dir)

	size, _ := a.dirSize(dir)
	if err := a.fs.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", dir, err)
	}

	metrics.StagingRemovedTotal.WithLabelValues(reason).Inc()
	metrics.StagingFreedBytes.Add(float64(size))
	logging.Debug("Released staged job %s (%d bytes, %s)", filepath.Base(dir), size, reason)
	return size, nil
}

// Sweep removes job directories older than maxAge that are not in use and
// returns how many were removed and the bytes freed.
func (a *Area) Sweep(maxAge time.Duration) (int, int64, error) {
	if maxAge <= 0 {
		return 0, 0, nil
	}

	cutoff := a.now().Add(-maxAge)
	return a.removeEntries(ReasonExpired, func(info os.FileInfo) bool {
		return info.ModTime().Before(cutoff)
	})
}

// Clear removes every job directory that is not in use and returns the number
// of bytes freed.
func (a *Area) Clear() (int64, error) {
	_, freed, err := a.removeEntries(ReasonCleared, func(os.FileInfo) bool { return true })
	if err != nil {
		return freed, err
	}
	logging.Info("Cleared staging directory: freed %d bytes", freed)
	return freed, nil
}

func (a *Area) removeEntries(reason string, match func(os.FileInfo) bool) (int, int64, error) {
	entries, err := afero.ReadDir(a.fs, a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var removed int
	var freed int64
	for _, entry := range entries {
		path := filepath.Join(a.root, entry.Name())
		if a.isActive(path) || !match(entry) {
			continue
		}

		size := entry.Size()
		if entry.IsDir() {
			size, _ = a.dirSize(path)
		}

		if err := a.fs.RemoveAll(path); err != nil {
			logging.Warn("failed to remove %s: %v", path, err)
			continue
		}

		removed++
		freed += size
		metrics.StagingRemovedTotal.WithLabelValues(reason).Inc()
	}

	metrics.StagingFreedBytes.Add(float64(freed))
	return removed, freed, nil
}

// Usage returns the total size and number of files in the staging directory.
func (a *Area) Usage() (int64, int, error) {
	var size int64
	var files int
	err := afero.Walk(a.fs, a.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files, err
}

// Writable checks that files can be created in the staging directory.
func (a *Area) Writable() error {
	testFile := filepath.Join(a.root, ".write-test")
	if err := afero.WriteFile(a.fs, testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := a.fs.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// StartJanitor periodically expires job directories older than maxAge and
// refreshes the staging usage metrics.
func (a *Area) StartJanitor(interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.runJanitor(maxAge)
			case <-a.stopCh:
				return
			}
		}
	}()
}

func (a *Area) runJanitor(maxAge time.Duration) {
	removed, freed, err := a.Sweep(maxAge)
	if err != nil {
		logging.Warn("Staging sweep failed: %v", err)
	} else if removed > 0 {
		logging.Info("Staging sweep removed %d expired jobs, freed %d bytes", removed, freed)
	}
	a.RefreshMetrics()
}

// RefreshMetrics updates the staging size gauges.
func (a *Area) RefreshMetrics() {
	size, files, err := a.Usage()
	if err != nil {
		logging.Debug("Failed to measure staging directory: %v", err)
		return
	}
	metrics.StagingSizeBytes.Set(float64(size))
	metrics.StagingFiles.Set(float64(files))
}

// Stop halts the janitor and waits for it to exit.
func (a *Area) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
	a.wg.Wait()
}

// Cleanup stops the janitor and removes the staging directory if New created it.
func (a *Area) Cleanup() {
	a.Stop()

	if !a.owned {
		return
	}
	if err := a.fs.RemoveAll(a.root); err != nil {
		logging.Warn("failed to remove staging directory %s: %v", a.root, err)
		return
	}
	logging.Info("Removed staging directory %s", a.root)
}

func (a *Area) isActive(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.active[path]
	return ok
}

func (a *Area) contains(path string) bool {
	rel, err := filepath.Rel(a.root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// dirSize calculates the total size of a directory
func (a *Area) dirSize(path string) (int64, error) {
	var size int64
	err := afero.Walk(a.fs, path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
