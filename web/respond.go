package web

import (
	"encoding/json"
	"net/http"
)

// FlashResponse is the "re-render with message" half of the form contract.
type FlashResponse struct {
	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, FlashResponse{Error: msg})
}
