// Package http serves the JSON API used by the ContabilApp pages.
//
// This file implements the Builder Pattern for JSON responses. Every answer
// shares one envelope, so the pages can show notifications and follow
// redirects the same way for every endpoint.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// Notification is a toast the page shows after the request.
type Notification struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int              `json:"duration"`
}

// envelope is the body of every API response.
type envelope struct {
	Data         any               `json:"data,omitempty"`
	Error        string            `json:"error,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Redirect     string            `json:"redirect,omitempty"`
	Queued       bool              `json:"queued,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
}

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       envelope
	noBody     bool
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.body.Data = v
	return b
}

// Error sets the message shown for a failed request.
func (b *ResponseBuilder) Error(message string) *ResponseBuilder {
	b.body.Error = message
	return b
}

// Fields sets per-field validation messages.
func (b *ResponseBuilder) Fields(fields map[string]string) *ResponseBuilder {
	b.body.Fields = fields
	return b
}

// Redirect tells the page where to go next.
func (b *ResponseBuilder) Redirect(path string) *ResponseBuilder {
	b.body.Redirect = path
	return b
}

// Queued marks the change as accepted offline.
func (b *ResponseBuilder) Queued(queued bool) *ResponseBuilder {
	b.body.Queued = queued
	return b
}

// Notify attaches a notification with the specified parameters.
func (b *ResponseBuilder) Notify(notifType NotificationType, message string, durationMs int) *ResponseBuilder {
	b.body.Notification = &Notification{Type: notifType, Message: message, Duration: durationMs}
	return b
}

func (b *ResponseBuilder) NotifySuccess(message string) *ResponseBuilder {
	return b.Notify(NotificationSuccess, message, 3000)
}

func (b *ResponseBuilder) NotifyError(message string) *ResponseBuilder {
	return b.Notify(NotificationError, message, 5000)
}

func (b *ResponseBuilder) NotifyWarning(message string) *ResponseBuilder {
	return b.Notify(NotificationWarning, message, 5000)
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// NoContent drops the body.
func (b *ResponseBuilder) NoContent() *ResponseBuilder {
	b.statusCode = http.StatusNoContent
	b.noBody = true
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.noBody {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Erro interno."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// ErrorResponse creates a standard error response with an error notification.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		Error(message).
		NotifyError(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 response carrying field messages.
func UnprocessableEntityError(message string, fields map[string]string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message).Fields(fields)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnauthorizedError sends the page back to the login screen.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).Redirect(loginPath)
}
