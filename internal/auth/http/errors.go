package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// writeError maps a service failure onto its API error. Anything unexpected
// is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthFailure):
		authsdk.ErrUnauthorized.WriteError(w)
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		authsdk.NewValidationError(msg).WriteError(w)
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		authsdk.ErrConflict.WriteError(w)
	case errors.Is(err, domain.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, domain.ErrForbidden):
		authsdk.ErrForbidden.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
