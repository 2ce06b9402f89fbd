package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP exchanges a password or a refresh token for a new token pair.
//
//	@Summary		Exchange credentials
//	@Description	Accepts {email, password} or {email, refreshToken}. A refresh token can be used once;
//	@Description	presenting it again revokes every token descending from the same login.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TokenRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"Access token and the next refresh token"
//	@Failure		400		{object}	authsdk.APIError		"Malformed request"
//	@Failure		401		{object}	authsdk.APIError		"Invalid credentials"
//	@Router			/v1/auth/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Exchange(r.Context(), service.IssueRequest{
		Email:        req.Email,
		Password:     req.Password,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresAt:    pair.ExpiresAt,
	})
}
