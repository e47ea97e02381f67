package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/braid-ai/braid/internal/provider"
)

// mapError converts an Anthropic SDK error into the appropriate provider
// sentinel error. Non-API errors are returned as-is.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	// Surface context errors directly so the invocation layer recognises
	// cancellation without burning a retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, apiErr.Error())
	case 529, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", provider.ErrOverloaded, apiErr.Error())
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (HTTP %d): %s", provider.ErrAuth, apiErr.StatusCode, apiErr.Error())
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", provider.ErrBadRequest, apiErr.Error())
	default:
		return fmt.Errorf("anthropic error (HTTP %d): %w", apiErr.StatusCode, err)
	}
}
