package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status code. Responses
// are marked non-cacheable since everything this service returns is
// credential material or per-user state.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body in the wire shape
// {"error": code, "error_description": desc}.
func WriteError(w http.ResponseWriter, status int, code, desc string) {
	WriteJSON(w, status, map[string]string{
		"error":             code,
		"error_description": desc,
	})
}

// NoCache sets Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
