package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	paymentdomain "github.com/keshav-const/promptlens-sub000/internal/payment/domain"
	"github.com/keshav-const/promptlens-sub000/internal/payment/provider"
	quotadomain "github.com/keshav-const/promptlens-sub000/internal/quota/domain"
	subscriptiondomain "github.com/keshav-const/promptlens-sub000/internal/subscription/domain"
	"github.com/keshav-const/promptlens-sub000/internal/token"
)

// APIError is the wire-level error envelope. Code values are stable and
// safe for clients to branch on.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrUnauthorized = &APIError{
		Status:  http.StatusUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: "authentication required",
	}
	ErrNotFound = &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
)

func invalidRequestError() *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_REQUEST",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// AbortWithError translates a domain error into the envelope and stops
// the handler chain. Unrecognized errors surface as a generic 500 with
// the detail kept server-side.
func AbortWithError(c *gin.Context, err error) {
	resolved := resolveAPIError(err)
	if resolved.Status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(resolved.Status, gin.H{"error": resolved})
}

func resolveAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var exceeded *quotadomain.ExceededError
	if errors.As(err, &exceeded) {
		return &APIError{
			Status:  http.StatusTooManyRequests,
			Code:    "QUOTA_EXCEEDED",
			Message: "plan quota exhausted for the current window",
			Details: map[string]any{
				"usage_count": exceeded.UsageCount,
				"limit":       exceeded.Limit,
				"plan":        exceeded.Plan,
				"reset_at":    exceeded.ResetAt.Format(time.RFC3339),
			},
		}
	}

	switch {
	case errors.Is(err, token.ErrExpired):
		return &APIError{
			Status:  http.StatusUnauthorized,
			Code:    "TOKEN_EXPIRED",
			Message: "credential has expired",
		}
	case errors.Is(err, token.ErrInvalidFormat),
		errors.Is(err, token.ErrInvalidSignature),
		errors.Is(err, token.ErrMissingClaim):
		return &APIError{
			Status:  http.StatusUnauthorized,
			Code:    "INVALID_TOKEN",
			Message: "credential could not be verified",
		}
	case errors.Is(err, paymentdomain.ErrMissingSignature):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "MISSING_SIGNATURE",
			Message: "webhook signature header is required",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return &APIError{
			Status:  http.StatusUnauthorized,
			Code:    "VERIFICATION_FAILED",
			Message: "webhook signature mismatch",
		}
	case errors.Is(err, paymentdomain.ErrMalformedPayload):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "INVALID_REQUEST",
			Message: "webhook payload could not be parsed",
		}
	case errors.Is(err, paymentdomain.ErrMissingData),
		errors.Is(err, subscriptiondomain.ErrMissingData):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "MISSING_DATA",
			Message: "required fields are missing",
		}
	case errors.Is(err, subscriptiondomain.ErrUnknownPlan):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "MISSING_DATA",
			Message: "a known paid plan is required",
		}
	case errors.Is(err, subscriptiondomain.ErrVerificationFailed):
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "VERIFICATION_FAILED",
			Message: "payment could not be verified",
		}
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound):
		return ErrNotFound
	case errors.Is(err, provider.ErrProviderUnavailable):
		return &APIError{
			Status:  http.StatusServiceUnavailable,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "a downstream dependency is unavailable",
		}
	default:
		return &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "INTERNAL",
			Message: "internal server error",
		}
	}
}
