package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/poubelles/poubelles-backend/pkg/errors"
)

// Response is the envelope used by operational endpoints such as /health
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// MessageBody is the flat error shape served by the public bin API
type MessageBody struct {
	Error string `json:"error"`
}

// JSON sends an enveloped JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	})
}

// Raw sends data as the whole response body, without an envelope
func Raw(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// Error sends an enveloped error response
func Error(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode, Response{
			Error: &ErrorBody{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, Response{
		Error: &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: "an unexpected error occurred",
		},
	})
}

// ErrorMessage sends {"error": "..."} using the AppError's public message.
// Anything that is not an AppError is reported as a generic 500.
func ErrorMessage(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode, MessageBody{Error: appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, MessageBody{Error: "an unexpected error occurred"})
}

// DecodeJSON decodes the request body into the provided struct
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
