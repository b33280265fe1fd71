package fetcher

import (
	"strings"
	"time"

	"media-fetch/internal/extractor"
	"media-fetch/internal/staging"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"
)

// Default limits used when Config leaves a field at zero.
const (
	DefaultExtractTimeout  = 2 * time.Minute
	DefaultDownloadTimeout = 30 * time.Minute
	DefaultMaxConcurrent   = 4
)

// Locator reports where ffmpeg is installed.
type Locator interface {
	Locate() (string, bool)
}

// Config holds the limits applied to extractor runs.
type Config struct {
	ExtractTimeout   time.Duration
	DownloadTimeout  time.Duration
	MaxConcurrent    int
	DeleteAfterServe bool
}

// Service lists formats and downloads media through an extractor.
type Service struct {
	extractor extractor.Extractor
	locator   Locator
	staging   *staging.Area
	fs        afero.Fs
	sem       *semaphore.Weighted
	cfg       Config

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. Files are staged in area and accessed through
// the area's filesystem.
func NewService(ext extractor.Extractor, locator Locator, area *staging.Area, cfg Config) *Service {
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = DefaultExtractTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Service{
		extractor: ext,
		locator:   locator,
		staging:   area,
		fs:        area.Fs(),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Fs returns the filesystem downloaded files live on.
func (s *Service) Fs() afero.Fs {
	return s.fs
}

// FFmpegAvailable reports whether ffmpeg can currently be located.
func (s *Service) FFmpegAvailable() bool {
	_, ok := s.locator.Locate()
	return ok
}

// checkURL rejects URLs the extractor could read as a command-line option.
func checkURL(url string) error {
	if strings.HasPrefix(strings.TrimSpace(url), "-") {
		return Validation("Invalid URL")
	}
	return nil
}
