package handlers

import "net/http"

// Health reports liveness for probes and smoke tests.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
