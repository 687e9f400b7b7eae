package monime

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// TransientMarker identifies gateway-side failures worth retrying.
const TransientMarker = "CROSSSLOT"

const infrastructureMessage = "Monime payment service is experiencing issues. Please try again in a moment or contact support if the problem persists."

type APIError struct {
	StatusCode     int
	Message        string
	Infrastructure bool
	// Err is the transport failure when no response arrived.
	Err error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("monime api error: %s", e.Err)
	}
	return fmt.Sprintf("monime api error: %d - %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// transportError flags a request that never got a response. It is not
// retried: a mutating call may already have been applied.
func transportError(err error) *APIError {
	return &APIError{StatusCode: http.StatusBadGateway, Message: err.Error(), Infrastructure: true, Err: err}
}

// UserMessage is safe to show to buyers and organizers.
func (e *APIError) UserMessage() string {
	if e.Infrastructure {
		return infrastructureMessage
	}
	return e.Message
}

func parseError(status int, body []byte) *APIError {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "message").String()
	}
	infra := status == http.StatusInternalServerError && strings.Contains(msg, TransientMarker)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg, Infrastructure: infra}
}

// IsInfrastructure reports whether err is a transient gateway failure.
func IsInfrastructure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Infrastructure
}
