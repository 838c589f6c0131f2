package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"promptbridge/internal/bridge"
)

type errorBody struct {
	ErrorKind bridge.Kind `json:"error_kind"`
	Message   string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := bridge.KindOf(err)
	writeJSON(w, statusFor(kind), errorBody{ErrorKind: kind, Message: err.Error()})
}

// statusFor maps a failure kind onto the HTTP status returned to the caller.
func statusFor(kind bridge.Kind) int {
	switch kind {
	case bridge.KindInvalidRequest:
		return http.StatusBadRequest
	case bridge.KindTimeout:
		return http.StatusGatewayTimeout
	case bridge.KindSubmission, bridge.KindChannel, bridge.KindExecution,
		bridge.KindHistoryNotFound, bridge.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
