package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/frkn-dev/pony/internal/model"
)

func writeInvalidArgument(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func writePayloadTooLarge(w http.ResponseWriter, limit int64) {
	msg := "request body too large"
	if limit > 0 {
		msg = "request body too large (max " + strconv.FormatInt(limit, 10) + " bytes)"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msg)
}

func writeDecodeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *requestBodyTooLargeError
	if errors.As(err, &tooLarge) {
		writePayloadTooLarge(w, tooLarge.Limit)
		return
	}
	writeInvalidArgument(w, err.Error())
}

// operationStatusCode maps a write-pipeline outcome (§4.1.1) to the HTTP
// status codes enumerated in §6.
func operationStatusCode(status model.OperationStatus) int {
	switch status {
	case model.StatusOk, model.StatusUpdated, model.StatusUpdatedStat:
		return http.StatusOK
	case model.StatusNotModified:
		return http.StatusNotModified
	case model.StatusAlreadyExist:
		return http.StatusConflict
	case model.StatusNotFound, model.StatusDeletedPreviously:
		return http.StatusNotFound
	case model.StatusBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeOperationResult writes the outcome of a write-pipeline call. The HTTP
// code follows status; a non-nil err carries the rejection reason and becomes
// the error message (a NotFound from WireGuard placement stays a 404).
func writeOperationResult(w http.ResponseWriter, status model.OperationStatus, err error) {
	code := operationStatusCode(status)
	if err != nil && (status == model.StatusBadRequest || code < http.StatusBadRequest) {
		writeInvalidArgument(w, err.Error())
		return
	}

	if code >= http.StatusBadRequest {
		msg := string(status)
		if err != nil {
			msg = err.Error()
		}
		WriteError(w, code, string(status), msg)
		return
	}
	WriteJSON(w, code, OperationResponse{Status: status})
}
