package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/log"
	"github.com/GMosna/ContabilApp/internal/services"
	"github.com/GMosna/ContabilApp/internal/state"
)

const (
	msgSessionExpired = "Sessão expirada. Faça login novamente."
	msgInvalidFields  = "Verifique os campos destacados."
	msgNotFound       = "Registro não encontrado."
	msgInternal       = "Ocorreu um erro inesperado. Tente novamente."
	msgStale          = "Sem conexão com o servidor; exibindo os últimos dados carregados."
	msgQueued         = "Sem conexão; a alteração será enviada quando o servidor voltar."
)

// errorResponse translates an error of the application into the response the
// pages expect:
//
//	unreachable backend   503 with the connection message
//	rejected token        401 and a redirect to the login
//	invalid input         422 with one message per field
//	backend refusal       the backend status and its message
func errorResponse(ctx context.Context, err error, operation string) *ResponseBuilder {
	logger := log.FromContext(ctx)

	if v, ok := core.AsValidation(err); ok {
		return UnprocessableEntityError(msgInvalidFields, v.Fields())
	}

	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, state.ErrNoSession):
		logger.InfoContext(ctx, "Request without a valid session", log.FieldOperation, operation)
		return UnauthorizedError(msgSessionExpired)

	case errors.Is(err, api.ErrUnavailable):
		logger.WarnContext(ctx, "Backend unavailable", log.FieldOperation, operation, log.FieldError, err)
		return ErrorResponse(http.StatusServiceUnavailable, api.UnavailableMessage).Header("Retry-After", "30")

	case errors.Is(err, services.ErrNoTransactionType):
		logger.WarnContext(ctx, "Transaction type missing on backend", log.FieldOperation, operation, log.FieldError, err)
		return UnprocessableEntityError(msgInvalidFields, map[string]string{"type": "Tipo de transação não cadastrado."})

	case errors.Is(err, state.ErrNotFound):
		return NotFoundError(msgNotFound)

	case errors.Is(err, context.Canceled):
		logger.DebugContext(ctx, "Request canceled by client", log.FieldOperation, operation)
		return ErrorResponse(499, "Requisição cancelada.")
	}

	if be, ok := api.AsBusiness(err); ok {
		status := be.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		logger.InfoContext(ctx, "Backend refused request",
			log.FieldOperation, operation,
			log.FieldStatusCode, be.Status,
			log.FieldError, be.Message)
		return ErrorResponse(status, be.Message)
	}

	logger.ErrorContext(ctx, "Request failed", log.FieldOperation, operation, log.FieldError, err)
	return InternalServerError(msgInternal)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	errorResponse(r.Context(), err, operation).Write(w)
}
