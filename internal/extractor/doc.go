// Package extractor wraps yt-dlp, the media-extraction collaborator.
//
// [YtDlp] builds yt-dlp invocations with github.com/lrstanley/go-ytdlp and
// decodes the info JSON yt-dlp prints. Callers depend on the [Extractor]
// interface so tests can substitute a fake.
package extractor
