package handlers

import (
	"encoding/json"
	"net/http"

	"media-fetch/internal/fetcher"
	"media-fetch/internal/logging"
)

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writeFetchError logs err and writes it with the status its kind maps to.
// When hint is set, server-side failures mentioning ffmpeg get install advice.
func writeFetchError(w http.ResponseWriter, op string, err error, hint bool) {
	status := fetcher.Status(err)
	message := err.Error()
	if hint && status >= http.StatusInternalServerError {
		message = fetcher.WithFFmpegHint(message)
	}

	if status >= http.StatusInternalServerError {
		logging.Error("%s failed: %v", op, err)
	} else {
		logging.Debug("%s rejected: %v", op, err)
	}

	writeJSONError(w, message, status)
}
