package unomas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GenericNetworkMessage is surfaced when a call fails without a server message.
const GenericNetworkMessage = "Connection error: check your network and that the UnoMas server is running."

// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
}

// Rejected reports whether the server refused the request (4xx). Such
// errors are authoritative and never retried automatically.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// IsTransient reports whether err is worth retrying on the next poll:
// network failures, timeouts, 5xx, and undecodable bodies.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Rejected()
	}
	return true
}

// IsTimeout reports whether err came from a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// UserMessage returns the text to show for a failed call: the server's
// message when there is one, otherwise a generic network message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return GenericNetworkMessage
}

// errorMessage extracts the human-readable message from an error body.
// Precedence: mensaje, message, error, raw text, status-derived fallback.
func errorMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var payload struct {
			Mensaje string `json:"mensaje"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			for _, candidate := range []string{payload.Mensaje, payload.Message, payload.Error} {
				if c := strings.TrimSpace(candidate); c != "" {
					return c
				}
			}
		} else {
			return trimmed
		}
	}
	return fmt.Sprintf("Error %d: %s", status, http.StatusText(status))
}
