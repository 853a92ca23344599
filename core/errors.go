package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AuthErrorBadInput         = "AUTH_BAD_INPUT"
	AuthErrorStaticExpired    = "AUTH_STATIC_EXPIRED"
	AuthErrorNotRefreshable   = "AUTH_NOT_REFRESHABLE"
	AuthErrorStaleAccessToken = "AUTH_STALE_ACCESS_TOKEN"
	AuthErrorHydrationFailed  = "AUTH_HYDRATION_FAILED"
	AuthErrorSaveUnsupported  = "AUTH_SAVE_UNSUPPORTED"
	AuthErrorUpstreamContract = "AUTH_UPSTREAM_CONTRACT"
	AuthErrorUpstreamFailed   = "AUTH_UPSTREAM_FAILED"
	AuthErrorLoadFailed       = "AUTH_LOAD_FAILED"
	AuthErrorInternal         = "AUTH_INTERNAL_ERROR"
)

// IsFatal reports whether an error is a provider-fatal configuration or
// contract violation, as opposed to a transient upstream or persistence
// failure. Fatal errors are not retried by the Provider.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return true
	}
	return false
}

func newFatalError(message string, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.New(message, goerrors.CategoryAuth).
			WithTextCode(textCode),
	)
}

func newUpstreamError(message string, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.New(message, goerrors.CategoryOperation).
			WithTextCode(textCode),
	)
}

func authErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "stale") && strings.Contains(msg, "token"):
		return newFatalError(err.Error(), AuthErrorStaleAccessToken)
	case strings.Contains(msg, "hydrate"):
		return newFatalError(err.Error(), AuthErrorHydrationFailed)
	case strings.Contains(msg, "token endpoint"), strings.Contains(msg, "request failed"):
		return newUpstreamError(err.Error(), AuthErrorUpstreamFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return ensureAuthErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(AuthErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthErrorEnvelope(mapped)
}

func ensureAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return AuthErrorNotRefreshable
	case goerrors.CategoryOperation:
		return AuthErrorUpstreamFailed
	default:
		return AuthErrorInternal
	}
}

func authHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
