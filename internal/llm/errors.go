package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

var (
	ErrNotConfigured = errors.New("model client has no api key")
	ErrAuth          = errors.New("model endpoint rejected credentials")
	ErrRateLimited   = errors.New("model endpoint rate limited")
	ErrServer        = errors.New("model endpoint server error")
	ErrTransport     = errors.New("model endpoint unreachable")
	ErrRequest       = errors.New("model endpoint rejected request")
	ErrEmptyReply    = errors.New("model endpoint returned no choices")
)

// classify maps a go-openai error onto the package sentinels.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 0:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrServer, err)
	default:
		return fmt.Errorf("%w: status %d: %w", ErrRequest, status, err)
	}
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

// ErrorKind names the failure class of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrRequest):
		return "request"
	case errors.Is(err, ErrEmptyReply):
		return "empty_reply"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
