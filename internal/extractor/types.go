package extractor

import (
	"context"
	"encoding/json"
)

// codecNone is the value yt-dlp reports for a stream that is absent.
const codecNone = "none"

// Extractor is the media-extraction collaborator.
type Extractor interface {
	// Probe extracts metadata without downloading media.
	Probe(ctx context.Context, url string) (*Info, error)

	// Fetch downloads the selected format. A nil Info with a nil error means
	// the extractor finished without producing a result.
	Fetch(ctx context.Context, url string, opts FetchOptions) (*Info, error)
}

// FetchOptions controls a real download.
type FetchOptions struct {
	// Format is the yt-dlp format selector, e.g. "22" or "137+140".
	Format string
	// OutputTemplate is an absolute path containing %(ext)s.
	OutputTemplate string
	// MergeOutputFormat is the container used when streams are merged.
	MergeOutputFormat string
	// FFmpegLocation is passed through to yt-dlp when non-empty.
	FFmpegLocation string
}

// Format is one entry of the "formats" array in yt-dlp's info JSON.
type Format struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
	FormatNote string `json:"format_note,omitempty"`
}

// HasVideo reports whether the format carries a video stream. A missing codec
// field counts as present, matching yt-dlp's own selection logic.
func (f Format) HasVideo() bool {
	return f.VCodec != codecNone
}

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool {
	return f.ACodec != codecNone
}

// Info is the subset of yt-dlp's info JSON the service uses.
type Info struct {
	Type    string            `json:"_type"`
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Ext     string            `json:"ext"`
	Formats []Format          `json:"formats"`
	Entries []json.RawMessage `json:"entries"`

	// Filename is the path yt-dlp prepared for the output file.
	Filename string `json:"filename"`
	// LegacyFilename is the older "_filename" key, still emitted by yt-dlp.
	LegacyFilename string `json:"_filename"`

	// Problem holds yt-dlp's error message when it exited non-zero after
	// printing this document.
	Problem string `json:"-"`
}

// IsCollection reports whether the result describes several videos.
func (i *Info) IsCollection() bool {
	switch i.Type {
	case "playlist", "multi_video":
		return true
	}
	return len(i.Entries) > 0
}

// OutputPath returns the predicted output path, or "" if yt-dlp did not report one.
func (i *Info) OutputPath() string {
	if i.Filename != "" {
		return i.Filename
	}
	return i.LegacyFilename
}
