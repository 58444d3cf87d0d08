package server

import (
	"encoding/json"
	"net/http"

	"github.com/mhersch/flowlevel/pkg/errors"
)

// errorEnvelope is the JSON shape of every error response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON marshals v into the response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// writeError writes the coded error envelope. The message comes from
// errors.UserMessage so internal detail stays out of responses.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	s.logger.Warn("request failed", "code", code, "status", status, "error", err)
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: errors.UserMessage(err),
	}})
}
