package api

import (
	"fmt"
	"net/http"
)

const errorTypeHeader = "X-Amzn-ErrorType"

// Error type names understood by the Athena SDKs.
const (
	typeInvalidRequest   = "InvalidRequestException"
	typeResourceNotFound = "ResourceNotFoundException"
	typeInternalServer   = "InternalServerException"
)

// apiError is an operation failure rendered as the AWS JSON error envelope.
type apiError struct {
	Status  int
	Type    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func errInvalidRequest(format string, args ...any) *apiError {
	return &apiError{Status: http.StatusBadRequest, Type: typeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(format string, args ...any) *apiError {
	return &apiError{Status: http.StatusBadRequest, Type: typeResourceNotFound, Message: fmt.Sprintf(format, args...)}
}

func errInternal(message string) *apiError {
	return &apiError{Status: http.StatusInternalServerError, Type: typeInternalServer, Message: message}
}

// errorEnvelope is the body shape of an AWS JSON protocol error.
type errorEnvelope struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}
