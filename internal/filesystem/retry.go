package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/spf13/afero"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// IsStale reports whether err is an NFS stale file handle error.
func IsStale(err error) bool {
	if err == nil {
		return false
	}

	// ESTALE is errno 116 on Linux
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}

	return false
}

// RetryFs is an afero.Fs that retries Stat and Open when the backing store
// reports a stale file handle. All other operations go straight to the
// wrapped filesystem.
type RetryFs struct {
	afero.Fs
	config RetryConfig
	sleep  func(time.Duration)
}

// NewRetryFs wraps base with stale-handle retries.
func NewRetryFs(base afero.Fs, config RetryConfig) *RetryFs {
	return &RetryFs{Fs: base, config: config, sleep: time.Sleep}
}

// Name returns the name of this filesystem
func (r *RetryFs) Name() string {
	return "RetryFs(" + r.Fs.Name() + ")"
}

// Stat performs Stat with retry logic for NFS stale file handle errors
func (r *RetryFs) Stat(name string) (os.FileInfo, error) {
	return withRetry(r, "stat", name, func() (os.FileInfo, error) {
		return r.Fs.Stat(name)
	})
}

// Open performs Open with retry logic for NFS stale file handle errors
func (r *RetryFs) Open(name string) (afero.File, error) {
	return withRetry(r, "open", name, func() (afero.File, error) {
		return r.Fs.Open(name)
	})
}

func withRetry[T any](r *RetryFs, op, path string, fn func() (T, error)) (T, error) {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				metrics.FilesystemRetriesTotal.WithLabelValues(op, metrics.StatusSuccess).Inc()
			}
			return v, nil
		}

		// Only retry on NFS stale file handle errors
		if !IsStale(err) {
			return v, err
		}

		lastErr = err
		metrics.FilesystemStaleErrors.WithLabelValues(op).Inc()

		// Don't sleep after the last attempt
		if attempt < r.config.MaxRetries {
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, r.config.MaxRetries)
			r.sleep(backoff)

			// Exponential backoff with cap
			backoff *= 2
			if backoff > r.config.MaxBackoff {
				backoff = r.config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, r.config.MaxRetries, path, lastErr)
	metrics.FilesystemRetriesTotal.WithLabelValues(op, metrics.StatusError).Inc()

	var zero T
	return zero, lastErr
}
