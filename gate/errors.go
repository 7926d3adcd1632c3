package gate

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatbot-gateway/middleware/ratelimit/domain"
)

type Kind string

const (
	KindMethodNotAllowed        Kind = "method_not_allowed"
	KindInvalidBotID            Kind = "invalid_bot_id"
	KindUnconfiguredWebhook     Kind = "unconfigured_webhook"
	KindInvalidBody             Kind = "invalid_body"
	KindValidationFailed        Kind = "validation_failed"
	KindRateLimited             Kind = "rate_limited"
	KindUpstreamUnavailable     Kind = "upstream_unavailable"
	KindUpstreamNonSuccess      Kind = "upstream_non_success"
	KindUpstreamInvalidResponse Kind = "upstream_invalid_response"
	KindOverloaded              Kind = "overloaded"
	KindNotFound                Kind = "not_found"
	KindInternal                Kind = "internal_error"
)

// Frases exibidas ao usuário final.
const (
	OutputGeneric      = "Sorry, an error occurred. Please try again."
	OutputInvalidInput = "Sorry, your message could not be processed. Please check your input."
	OutputRateLimited  = "You are sending messages too quickly. Please wait a moment and try again."
	OutputUpstream     = "Sorry, I encountered an error. Please try again in a moment."
	OutputInternal     = "Sorry, I encountered an error. Please try again."
	OutputUnconfigured = "Sorry, the chatbot is not properly configured."
	OutputBusy         = "Sorry, the chat is busy right now. Please try again in a moment."
)

// Error é uma falha do gate já traduzida para status + corpo.
type Error struct {
	Kind   Kind
	Status int
	// Message vai no campo "error" da resposta.
	Message string
	// Output vai no campo "output" da resposta.
	Output     string
	RetryAfter time.Duration
	// Err é o detalhe interno; só aparece no log.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) outcome() domain.Outcome {
	switch e.Kind {
	case KindInvalidBotID, KindUnconfiguredWebhook:
		return domain.OutcomeInvalidBot
	case KindMethodNotAllowed, KindInvalidBody, KindValidationFailed, KindNotFound:
		return domain.OutcomeInvalidInput
	case KindRateLimited:
		return domain.OutcomeRateLimited
	case KindUpstreamUnavailable, KindUpstreamNonSuccess, KindUpstreamInvalidResponse:
		return domain.OutcomeUpstreamError
	case KindOverloaded:
		return domain.OutcomeOverloaded
	}
	return domain.OutcomeInternalError
}

func errMethodNotAllowed(method string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Message: "Method not allowed",
		Output:  OutputGeneric,
		Err:     fmt.Errorf("method %s", method),
	}
}

func errInvalidBot(id string) *Error {
	return &Error{
		Kind:    KindInvalidBotID,
		Status:  http.StatusBadRequest,
		Message: "Invalid bot configuration",
		Output:  OutputGeneric,
		Err:     fmt.Errorf("unknown bot id %q", id),
	}
}

func errUnconfiguredWebhook(id string) *Error {
	return &Error{
		Kind:    KindUnconfiguredWebhook,
		Status:  http.StatusInternalServerError,
		Message: "Webhook not configured",
		Output:  OutputUnconfigured,
		Err:     fmt.Errorf("no webhook url for bot %q", id),
	}
}

func errInvalidBody(err error) *Error {
	return &Error{
		Kind:    KindInvalidBody,
		Status:  http.StatusBadRequest,
		Message: "Invalid request body",
		Output:  OutputInvalidInput,
		Err:     err,
	}
}

// errValidation ecoa a lista de erros: ela só nomeia campos malformados.
func errValidation(errs []string) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Status:  http.StatusBadRequest,
		Message: strings.Join(errs, ", "),
		Output:  OutputInvalidInput,
	}
}

// RateLimitError traduz uma decisão negativa do rate limit.
func RateLimitError(dec domain.Decision) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    dec.Reason,
		Output:     OutputRateLimited,
		RetryAfter: dec.RetryAfter,
	}
}

// OverloadedError é usado quando não há vaga de concorrência.
func OverloadedError() *Error {
	return &Error{
		Kind:    KindOverloaded,
		Status:  http.StatusServiceUnavailable,
		Message: "Server busy",
		Output:  OutputBusy,
	}
}

// NotFoundError é usado pelo router para rotas inexistentes.
func NotFoundError() *Error {
	return &Error{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: "Not found",
		Output:  OutputGeneric,
	}
}

func errInternal(err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Output:  OutputInternal,
		Err:     err,
	}
}

// errUpstream classifica a falha do Forwarder.
func errUpstream(err error) *Error {
	var statusErr *UpstreamStatusError
	switch {
	case errors.As(err, &statusErr):
		return &Error{
			Kind:    KindUpstreamNonSuccess,
			Status:  http.StatusBadGateway,
			Message: "Webhook error",
			Output:  OutputUpstream,
			Err:     err,
		}
	case errors.Is(err, ErrUpstreamUnavailable):
		return &Error{
			Kind:    KindUpstreamUnavailable,
			Status:  http.StatusInternalServerError,
			Message: "Upstream unavailable",
			Output:  OutputInternal,
			Err:     err,
		}
	case errors.Is(err, ErrInvalidUpstreamResponse):
		return &Error{
			Kind:    KindUpstreamInvalidResponse,
			Status:  http.StatusInternalServerError,
			Message: "Invalid upstream response",
			Output:  OutputInternal,
			Err:     err,
		}
	}
	return errInternal(err)
}

// asGateError garante que qualquer erro vire *Error.
func asGateError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return errInternal(err)
}
