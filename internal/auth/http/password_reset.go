package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

type PasswordResetHandler struct {
	Issuer *service.ActionTokenIssuer
}

// ServeHTTP requests a password reset link. The answer is the same whether
// or not the address belongs to an account.
//
//	@Summary		Request a password reset
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordResetRequest	true	"Account email"
//	@Success		202		"Accepted"
//	@Failure		400		{object}	authsdk.APIError	"Malformed email"
//	@Router			/v1/auth/password-reset [post].
func (h *PasswordResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if _, err := h.Issuer.IssuePasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
