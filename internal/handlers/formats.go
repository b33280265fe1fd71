package handlers

import (
	"net/http"
)

// FetchFormats lists the downloadable formats for the url query parameter.
func (h *Handlers) FetchFormats(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")

	list, err := h.fetcher.ListFormats(r.Context(), url)
	if err != nil {
		writeFetchError(w, "Format listing", err, false)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, list)
}
