// Package httpx holds the JSON response envelope and request helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx JSON response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeBadRequest         = "bad_request"
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorised"
	CodeAccessTokenExpired = "access_token_expired"
	CodeForbidden          = "forbidden"
	CodeConflict           = "conflict"
	CodeValidation         = "validation_error"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal_error"
	CodeUnavailable        = "unavailable"
	CodeSessionExpired     = "session_expired"
	CodeSessionInvalid     = "session_invalid"
	CodeAccountInactive    = "account_inactive"
)

// WriteJSON writes v with the given status. A nil v writes headers only.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// WriteInternal writes a 500 without detail.
func WriteInternal(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// DecodeJSON reads a JSON body into v and rejects unknown trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
