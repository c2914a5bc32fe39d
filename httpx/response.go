package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the single response shape returned by every API endpoint.
// Clients never have to guess whether a body is a bare array or an object.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Page wraps list results.
type Page struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(env)
	if err != nil {
		// best-effort error response; avoid writing partial JSON
		http.Error(w, `{"success":false,"error":"encode_error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

// JSON writes a successful envelope carrying payload.
func JSON(w http.ResponseWriter, status int, payload any) {
	write(w, status, Envelope{Success: true, Data: payload})
}

// JSONError writes a failed envelope with a machine readable code.
func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	write(w, status, Envelope{Success: false, Error: msg, Details: details})
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
