// Package memory configures Go's runtime memory limit in containerized
// environments.
//
// Unlike GOMAXPROCS, GOMEMLIMIT is not derived from cgroup limits by the
// runtime. media-fetch also shares its container with yt-dlp and ffmpeg child
// processes, so only part of the container limit is given to the Go heap.
//
// # Environment Variables
//
//   - GOMEMLIMIT: Standard Go environment variable. If set, takes precedence
//     and is only reported.
//   - MEMORY_LIMIT: Container memory limit in bytes, typically set through the
//     Kubernetes Downward API:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap, between 0.0 and 1.0
//     (default 0.5).
//
// Call [Configure] at startup, before significant allocations.
package memory
