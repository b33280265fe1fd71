package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/spf13/afero"
)

// Binary is the executable name searched for on PATH.
const Binary = "ffmpeg"

// DefaultTable lists well-known install locations per platform, in search order.
var DefaultTable = map[string][]string{
	"windows": {`C:\Program Files\ffmpeg\bin\ffmpeg.exe`},
	"linux":   {"/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"},
	"darwin":  {"/usr/local/bin/ffmpeg", "/opt/homebrew/bin/ffmpeg"},
}

// Locator finds an ffmpeg executable on the host.
//
// Lookups are not cached: every call re-checks the filesystem so an ffmpeg
// installed while the service runs is picked up by the next request.
type Locator struct {
	fs       afero.Fs
	override string
	goos     string
	table    map[string][]string
	lookPath func(string) (string, error)
}

// Option customizes a Locator.
type Option func(*Locator)

// WithOverride sets an explicit path that is checked before anything else.
func WithOverride(path string) Option {
	return func(l *Locator) { l.override = path }
}

// WithPlatform replaces the platform identifier used to pick table entries.
func WithPlatform(goos string) Option {
	return func(l *Locator) { l.goos = goos }
}

// WithTable replaces the candidate table.
func WithTable(table map[string][]string) Option {
	return func(l *Locator) { l.table = table }
}

// WithLookPath replaces the PATH lookup function. Pass nil to disable PATH lookups.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(l *Locator) { l.lookPath = fn }
}

// NewLocator creates a Locator that checks existence through fs.
func NewLocator(fs afero.Fs, opts ...Option) *Locator {
	l := &Locator{
		fs:       fs,
		goos:     runtime.GOOS,
		table:    DefaultTable,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the first ffmpeg path that exists, checking the override,
// then the running platform's table entries, then PATH. The boolean is false
// when nothing was found.
func (l *Locator) Locate() (string, bool) {
	path, ok := l.locate()
	if ok {
		metrics.FFmpegAvailable.Set(1)
	} else {
		metrics.FFmpegAvailable.Set(0)
	}
	return path, ok
}

func (l *Locator) locate() (string, bool) {
	if l.override != "" {
		if l.isFile(l.override) {
			return l.override, true
		}
		logging.Warn("FFMPEG_PATH %s does not exist, falling back to search", l.override)
	}

	for _, candidate := range l.table[l.goos] {
		if l.isFile(candidate) {
			return candidate, true
		}
	}

	if l.lookPath != nil {
		if path, err := l.lookPath(Binary); err == nil && path != "" {
			return path, true
		}
	}

	return "", false
}

// Candidates returns the ordered list of paths checked before the PATH lookup.
func (l *Locator) Candidates() []string {
	var out []string
	if l.override != "" {
		out = append(out, l.override)
	}
	return append(out, l.table[l.goos]...)
}

func (l *Locator) isFile(path string) bool {
	info, err := l.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Version runs "<path> -version" and returns the first output line.
func Version(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}
