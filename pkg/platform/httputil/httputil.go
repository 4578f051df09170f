// Package httputil provides shared JSON response helpers for HTTP handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "gumball/pkg/domain-errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError renders a domain error as a JSON body with the mapped status.
// Internal errors omit the description so implementation detail never leaks
// to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.HTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON renders v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
