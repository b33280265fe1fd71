package fetcher

import (
	"context"
	"fmt"
	"strings"

	"media-fetch/internal/extractor"
	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"

	"github.com/samber/lo"
)

// defaultExt is reported when the extractor leaves a format's extension empty.
const defaultExt = "mp4"

// Format describes one downloadable format.
type Format struct {
	FormatID       string `json:"format_id"`
	Resolution     string `json:"resolution"`
	Ext            string `json:"ext"`
	RequiresFFmpeg bool   `json:"requires_ffmpeg"`
}

// FormatList is the response of ListFormats.
type FormatList struct {
	Formats         []Format `json:"formats"`
	FFmpegAvailable bool     `json:"ffmpeg_available"`
}

// ListFormats returns the formats of a single video that can be downloaded on
// this host. Formats with both audio and video are always listed; formats that
// need merging are listed only when ffmpeg is available. Entries that share a
// resolution and extension with an earlier entry are dropped.
func (s *Service) ListFormats(ctx context.Context, url string) (*FormatList, error) {
	list, err := s.listFormats(ctx, url)
	if err != nil {
		metrics.FormatListingsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.FormatListingsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.FormatsReturned.Observe(float64(len(list.Formats)))
	return list, nil
}

func (s *Service) listFormats(ctx context.Context, url string) (*FormatList, error) {
	if strings.TrimSpace(url) == "" {
		return nil, Validation("URL parameter is required")
	}
	if err := checkURL(url); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	info, err := s.extractor.Probe(ctx, url)
	if err != nil {
		return nil, Extraction(err.Error(), err)
	}
	if info == nil {
		return nil, Extraction("Failed to extract video information", nil)
	}
	if info.IsCollection() {
		return nil, Unsupported("Playlists are not supported")
	}

	_, ffmpegAvailable := s.locator.Locate()
	formats := selectFormats(info.Formats, ffmpegAvailable)

	logging.Debug("Listed %d of %d formats for %s (ffmpeg available: %v)",
		len(formats), len(info.Formats), info.ID, ffmpegAvailable)

	return &FormatList{
		Formats:         formats,
		FFmpegAvailable: ffmpegAvailable,
	}, nil
}

// selectFormats filters and deduplicates raw formats. The result is never nil.
func selectFormats(raw []extractor.Format, ffmpegAvailable bool) []Format {
	usable := lo.FilterMap(raw, func(f extractor.Format, _ int) (Format, bool) {
		if f.FormatID == "" {
			return Format{}, false
		}

		muxed := f.HasVideo() && f.HasAudio()
		if !muxed && !ffmpegAvailable {
			return Format{}, false
		}

		ext := f.Ext
		if ext == "" {
			ext = defaultExt
		}

		return Format{
			FormatID:       f.FormatID,
			Resolution:     fmt.Sprintf("%dx%d", f.Width, f.Height),
			Ext:            ext,
			RequiresFFmpeg: !muxed,
		}, true
	})

	unique := lo.UniqBy(usable, func(f Format) string {
		return f.Resolution + "|" + f.Ext
	})
	if unique == nil {
		return []Format{}
	}
	return unique
}

func outcome(err error) string {
	if Status(err) < 500 {
		return metrics.StatusClientError
	}
	return metrics.StatusError
}
