package devserver

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Results any    `json:"results,omitempty"`
}

type forceLogout struct {
	ForceLogout bool `json:"force_logout"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResults(w http.ResponseWriter, results any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Results: results})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message})
}

// writeForceLogout signals the end of the caller's session in the envelope while the
// status stays 200.
func writeForceLogout(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Message: message, Results: forceLogout{ForceLogout: true}})
}
