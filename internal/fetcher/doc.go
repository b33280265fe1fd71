// Package fetcher implements the two operations of the service: listing the
// downloadable formats of a video and downloading one of them.
//
// # Format listing
//
// ListFormats probes the URL with the extractor, rejects playlists, and
// returns the formats usable on this host. A format that carries both audio
// and video is always usable. A format missing either stream must be merged
// by ffmpeg and is only listed when ffmpeg is installed. The list never holds
// two formats with the same resolution and extension; the first one wins.
//
// # Downloads
//
// Download stages the file in its own job directory named after a UUID, with
// a timestamped base name such as video_20240101_120000.mp4. Once the
// extractor finishes, the file is renamed to a sanitized name and handed back
// to the caller to stream. Release applies the retention policy afterwards.
// The number of downloads running at once is capped by a semaphore.
//
// # Errors
//
// Failures are returned as *Error values whose Kind decides the HTTP status:
// validation and unsupported-input errors are client errors (400), the rest
// are server errors (500).
package fetcher
