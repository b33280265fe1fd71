/*
Package streaming sends staged downloads to clients with timeout protection.

# Overview

Downloaded files can be large and clients can be slow or vanish mid-transfer.
TimeoutWriter wraps an http.ResponseWriter so a stalled connection is detected
and the handler returns instead of holding the staged file open forever.

# Key Features

  - Per-write timeouts, using the connection's write deadline when the
    ResponseWriter chain supports it and a timer otherwise
  - Idle detection: streams with no data flow are canceled after IdleTimeout
  - Chunked writes with a flush after every chunk
  - Client disconnect detection through the request context
  - Optional progress callbacks

# Usage

	f, err := fs.Open(job.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	a := streaming.Attachment{Filename: job.Filename, ContentType: "video/mp4", Size: job.Size}
	n, err := streaming.StreamAttachment(r.Context(), w, f, a, streaming.DefaultTimeoutWriterConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		// not a server error
	}

StreamAttachment sets Content-Type, Content-Disposition and Content-Length
before writing the status line. Non-ASCII file names are sent with an ASCII
fallback and an RFC 5987 filename* parameter.

# Errors

	ErrWriteTimeout    a write or the whole stream took too long
	ErrClientGone      the request context was canceled
	ErrStreamCanceled  the writer was closed or went idle
*/
package streaming
