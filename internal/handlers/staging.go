package handlers

import (
	"net/http"

	"media-fetch/internal/logging"
)

// ClearStagingResponse reports how much space a clear released.
type ClearStagingResponse struct {
	Success    bool  `json:"success"`
	FreedBytes int64 `json:"freedBytes"`
}

// ClearStaging removes every staged file not belonging to an in-flight download.
func (h *Handlers) ClearStaging(w http.ResponseWriter, _ *http.Request) {
	freed, err := h.staging.Clear()
	if err != nil {
		logging.Error("Failed to clear staging area: %v", err)
		writeJSONError(w, "Failed to clear staging area", http.StatusInternalServerError)
		return
	}

	logging.Info("Staging area cleared, freed %d bytes", freed)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ClearStagingResponse{Success: true, FreedBytes: freed})
}
