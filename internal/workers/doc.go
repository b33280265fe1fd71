/*
Package workers sizes concurrency limits from the CPUs actually available to
the process.

runtime.NumCPU reports the host's CPUs, which overstates what a container with
a CPU limit can use. GOMAXPROCS follows the container limit (Go 1.19+), so the
helpers here derive their counts from it:

	workers.Count(2.0, 16) // 2 per CPU, at most 16
	workers.ForIO(16)      // same as above
	workers.ForDownloads() // default MAX_CONCURRENT_DOWNLOADS

With a 2 CPU limit, ForDownloads returns 4. Operators can always set
MAX_CONCURRENT_DOWNLOADS explicitly.
*/
package workers
