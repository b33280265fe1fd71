package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"media-fetch/internal/fetcher"
	"media-fetch/internal/logging"
	"media-fetch/internal/metrics"
	"media-fetch/internal/streaming"
)

// downloadContentType is sent for every download whatever the container.
const downloadContentType = "video/mp4"

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

// Download fetches the requested format into staging and streams the merged
// file back as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFetchError(w, "Download", fetcher.Validation("Invalid request body"), true)
		return
	}

	job, err := h.fetcher.Download(r.Context(), req.URL, req.FormatID)
	if err != nil {
		writeFetchError(w, "Download", err, true)
		return
	}
	defer h.fetcher.Release(job)

	f, err := h.fetcher.Fs().Open(job.Path)
	if err != nil {
		writeFetchError(w, "Download", fetcher.FileMissing("Downloaded file not found at "+job.Path, err), true)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn("Failed to close %s: %v", job.Path, cerr)
		}
	}()

	logging.Info("Serving %s (%d bytes) for job %s", job.Filename, job.Size, job.ID)

	n, err := streaming.StreamAttachment(r.Context(), w, f, streaming.Attachment{
		Filename:    job.Filename,
		ContentType: downloadContentType,
		Size:        job.Size,
	}, h.stream)
	metrics.BytesServed.Add(float64(n))

	if err != nil {
		if errors.Is(err, streaming.ErrClientGone) || errors.Is(err, streaming.ErrStreamCanceled) {
			logging.Debug("Client stopped download of %s after %d bytes: %v", job.Filename, n, err)
			return
		}
		logging.Warn("Streaming %s failed after %d bytes: %v", job.Filename, n, err)
	}
}
