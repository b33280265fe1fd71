/*
Package filesystem provides an afero filesystem with automatic retry logic for
NFS stale file handle errors.

The staging directory is often a mounted volume. When it is NFS-backed, Stat
and Open can fail with ESTALE (errno 116) while the server revalidates a
handle; the same call usually succeeds a few milliseconds later.

# Usage

	fs := filesystem.NewRetryFs(afero.NewOsFs(), filesystem.DefaultRetryConfig())
	area, err := staging.New(fs, "/downloads")

Only ESTALE is retried, with exponential backoff capped at MaxBackoff. Any
other error is returned immediately, so a missing file costs one call.

# Metrics

  - media_fetch_filesystem_stale_errors_total{operation}
  - media_fetch_filesystem_retries_total{operation,status}
*/
package filesystem
