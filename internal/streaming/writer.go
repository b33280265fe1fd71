package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-fetch/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream completed.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the stream was canceled by Close or by
	// the idle checker.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout is the maximum time to wait for a single write operation
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes
	IdleTimeout time.Duration
	// MaxDuration is the absolute maximum streaming duration (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
	// OnProgress is called roughly every megabyte with the bytes written so far
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns the defaults used for downloads.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter with timeout protection.
//
// When the underlying connection supports write deadlines they are used
// directly; otherwise each write runs in a goroutine bounded by a timer.
type TimeoutWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	deadlines bool

	ctx    context.Context
	cancel context.CancelCauseFunc
	config TimeoutWriterConfig

	writeMu sync.Mutex

	mu           sync.Mutex
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancelCause(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: now,
		lastWrite: now,
	}
	tw.deadlines = config.WriteTimeout > 0 && tw.rc.SetWriteDeadline(time.Time{}) == nil

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}

	if tw.config.MaxDuration > 0 && time.Since(tw.startTime) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	tw.writeMu.Lock()
	defer tw.writeMu.Unlock()

	chunkSize := tw.config.ChunkSize
	if chunkSize <= 0 || chunkSize > len(p) {
		chunkSize = len(p)
	}

	total := 0
	for len(p) > 0 {
		if total > 0 && tw.ctx.Err() != nil {
			return total, tw.contextError()
		}

		n := min(chunkSize, len(p))
		written, err := tw.writeOnce(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]

		if err := tw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return total, err
		}
	}

	return total, nil
}

func (tw *TimeoutWriter) writeOnce(p []byte) (int, error) {
	var n int
	var err error
	if tw.deadlines {
		n, err = tw.writeWithDeadline(p)
	} else {
		n, err = tw.writeWithTimer(p)
	}

	if n > 0 {
		tw.record(n)
	}
	return n, err
}

func (tw *TimeoutWriter) writeWithDeadline(p []byte) (int, error) {
	if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil {
		return 0, err
	}

	n, err := tw.w.Write(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		tw.cancel(ErrWriteTimeout)
		return n, ErrWriteTimeout
	}
	return n, err
}

func (tw *TimeoutWriter) writeWithTimer(p []byte) (int, error) {
	if tw.config.WriteTimeout <= 0 {
		return tw.w.Write(p)
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	timer := time.NewTimer(tw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-timer.C:
		tw.cancel(ErrWriteTimeout)
		return 0, ErrWriteTimeout
	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) record(n int) {
	tw.mu.Lock()
	before := tw.bytesWritten
	tw.bytesWritten += int64(n)
	after := tw.bytesWritten
	tw.lastWrite = time.Now()
	tw.mu.Unlock()

	if tw.config.OnProgress != nil && after/(1024*1024) != before/(1024*1024) {
		tw.config.OnProgress(after, time.Since(tw.startTime))
	}
}

// idleChecker monitors for idle connections
func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}

			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.cancel(ErrStreamCanceled)
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

// contextError reports why the writer's context ended.
func (tw *TimeoutWriter) contextError() error {
	cause := context.Cause(tw.ctx)
	switch {
	case errors.Is(cause, ErrWriteTimeout), errors.Is(cause, ErrStreamCanceled):
		return cause
	case errors.Is(cause, context.Canceled):
		return ErrClientGone
	default:
		return ErrStreamCanceled
	}
}

// Close marks the writer as closed
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel(ErrStreamCanceled)

	return nil
}

// Stats returns streaming statistics
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// Attachment describes a file sent as a download.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// ContentDisposition returns the attachment header value for filename.
// Names outside ASCII get an ASCII fallback plus an RFC 5987 filename*.
func ContentDisposition(filename string) string {
	if isASCII(filename) {
		return fmt.Sprintf("attachment; filename=%q", filename)
	}

	fallback := strings.Map(func(r rune) rune {
		if r > 0x7e || r < 0x20 {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", fallback, url.PathEscape(filename))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// SetHeaders writes the download headers for a.
func (a Attachment) SetHeaders(h http.Header) {
	h.Set("Content-Type", a.ContentType)
	h.Set("Content-Disposition", ContentDisposition(a.Filename))
	h.Set("X-Content-Type-Options", "nosniff")
	if a.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
}

// StreamAttachment writes the attachment headers and a 200 status, then
// copies r to the response with timeout protection. It returns the number
// of bytes sent.
func StreamAttachment(ctx context.Context, w http.ResponseWriter, r io.Reader, a Attachment, config TimeoutWriterConfig) (int64, error) {
	a.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	_, err := io.Copy(tw, r)

	bytesWritten, duration := tw.Stats()
	logging.Debug("Stream of %s completed: %d bytes in %v", a.Filename, bytesWritten, duration)

	return bytesWritten, err
}
