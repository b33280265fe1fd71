package workers

import "runtime"

// DownloadLimit caps the default number of concurrent downloads. Each
// download runs a yt-dlp process and possibly an ffmpeg merge.
const DownloadLimit = 8

// Count returns the number of workers for a task type, based on GOMAXPROCS
// so container CPU limits are respected.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForDownloads returns the default number of downloads allowed to run at
// once. Downloads mostly wait on the network, so they are sized as I/O work.
func ForDownloads() int {
	return ForIO(DownloadLimit)
}
