package api

import "time"

const apiVersion = "1.0.0"

type APIResponse[T any] struct {
	Data      T             `json:"data,omitempty"`
	Error     ErrorResponse `json:"error"`
	Status    int           `json:"status,omitempty"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version"`
}

type ErrorResponse struct {
	Message          string `json:"message"`
	DetailedResponse string `json:"details,omitempty"`
}

const (
	MsgInternalError     = "An internal error occurred"
	MsgInvalidRequest    = "Invalid request"
	MsgAgreementNotFound = "Agreement not found"
)

func NewErrorResponseWithMessage(message string) APIResponse[interface{}] {
	return APIResponse[interface{}]{
		Error: ErrorResponse{
			Message: message,
		},
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   apiVersion,
	}
}

func NewErrorResponseWithDetails(message, details string) APIResponse[interface{}] {
	resp := NewErrorResponseWithMessage(message)
	resp.Error.DetailedResponse = details
	return resp
}

func NewSuccessResponse[T any](code int, data T) APIResponse[T] {
	return APIResponse[T]{
		Status:    code,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   apiVersion,
	}
}
