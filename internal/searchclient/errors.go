package searchclient

import (
	"errors"
	"fmt"
)

const GenericMessage = "Failed to search flights. Please try again."

// NetworkError is a transport failure: the service was never heard from.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "flight search request failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError is a response the service sent but that is not a result list.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("flight search service returned %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Message converts a search error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var serr *ServiceError
	if errors.As(err, &serr) && serr.Message != "" {
		return serr.Message
	}
	return GenericMessage
}
