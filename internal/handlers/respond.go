package handlers

import (
	"encoding/json"
	"net/http"
)

type apiResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	ID      int      `json:"id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
