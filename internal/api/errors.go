package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

var (
	// ErrUnavailable wraps every failure to reach the backend: refused
	// connections, timeouts and gateway errors.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrUnauthorized means there is no token or the backend rejected it.
	// Callers must drop the session and send the user to the login page.
	ErrUnauthorized = errors.New("unauthorized")
)

// UnavailableMessage is shown to the user when the backend cannot be reached.
const UnavailableMessage = "Não foi possível conectar ao servidor."

// BusinessError is a non-2xx answer carrying the backend's explanation,
// e.g. "Saldo insuficiente para saque." on a withdrawal.
type BusinessError struct {
	Status  int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// NotFound reports a 404 from the backend.
func (e *BusinessError) NotFound() bool { return e.Status == 404 }

// AsBusiness extracts a *BusinessError from err.
func AsBusiness(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// messagePaths are tried in order against the decoded error body. They cover
// {"message": ...} bodies and bean validation failures.
var messagePaths = []string{
	"$.message",
	"$.errors[0].defaultMessage",
}

// genericMessage is used when the body carries no usable message.
func genericMessage(status int) string {
	return fmt.Sprintf("Erro %d", status)
}

// extractMessage returns the first non-empty message found in body.
func extractMessage(body []byte) (string, bool) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		text := strings.TrimSpace(string(body))
		if text != "" && len(text) < 300 && !strings.HasPrefix(text, "<") {
			return text, true
		}
		return "", false
	}
	for _, path := range messagePaths {
		v, err := jsonpath.Get(path, doc)
		if err != nil {
			continue
		}
		if list, ok := v.([]any); ok {
			if len(list) == 0 {
				continue
			}
			v = list[0]
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func newBusinessError(status int, body []byte) *BusinessError {
	msg, ok := extractMessage(body)
	if !ok {
		msg = genericMessage(status)
	}
	return &BusinessError{Status: status, Message: msg}
}
