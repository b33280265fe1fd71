// Package ffmpeg locates the ffmpeg executable that yt-dlp uses to merge
// separate audio and video streams.
//
// The service never runs ffmpeg for media work itself; it only resolves a
// path and hands it to the extractor. Resolution order is an explicit
// override (FFMPEG_PATH), then well-known install paths for the running
// platform, then a PATH lookup.
package ffmpeg
