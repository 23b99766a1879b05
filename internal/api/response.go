// Package api implements the orchestrator's REST surface and the auth
// sidecar's HTTP endpoints (spec §6).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/frkn-dev/pony/internal/model"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// OperationResponse carries a write-pipeline outcome (§4.1.1), as required
// by §6: "responses carry OperationStatus".
type OperationResponse struct {
	Status model.OperationStatus `json:"status"`
}
