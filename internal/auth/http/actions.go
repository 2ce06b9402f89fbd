package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

type ActionsHandler struct {
	ActionService *service.ActionService
	Issuer        *service.ActionTokenIssuer
}

func actionResponse(ar *domain.ActionRequest) authsdk.ActionResponse {
	return authsdk.ActionResponse{
		ID:        ar.ID,
		Status:    string(ar.Status),
		Action:    string(ar.Action),
		CreatedAt: ar.CreatedAt,
		UpdatedAt: ar.UpdatedAt,
	}
}

// HandleRedeem redeems a signed action token.
//
//	@Summary		Redeem an action token
//	@Description	Consumes the token and starts the action. The response is always PROCESSING;
//	@Description	poll GET /v1/actions/{id} for the outcome.
//	@Tags			Actions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ActionRedeemRequest	true	"Signed action token"
//	@Success		202		{object}	authsdk.ActionResponse		"Action accepted"
//	@Failure		400		{object}	authsdk.APIError			"Malformed request or weak password"
//	@Failure		401		{object}	authsdk.APIError			"Invalid, expired or used token"
//	@Router			/v1/actions [post].
func (h *ActionsHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ActionRedeemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ar, err := h.ActionService.Redeem(r.Context(), service.RedeemRequest{
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, actionResponse(ar))
}

// HandleGet returns the current state of an action request.
//
//	@Summary		Poll an action request
//	@Tags			Actions
//	@Produce		json
//	@Param			id	path		string					true	"Action request id"
//	@Success		200	{object}	authsdk.ActionResponse	"Current status"
//	@Failure		404	{object}	authsdk.APIError		"Unknown or expired id"
//	@Router			/v1/actions/{id} [get].
func (h *ActionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ar, err := h.ActionService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, actionResponse(ar))
}

// HandleResend re-announces an unused action token so it is delivered again.
//
//	@Summary		Resend an action token
//	@Tags			Actions
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Token id"
//	@Success		202	"Accepted"
//	@Failure		403	{object}	authsdk.APIError	"Admin role required"
//	@Failure		404	{object}	authsdk.APIError	"Unknown, used or expired token"
//	@Router			/v1/tokens/{id}/resend [post].
func (h *ActionsHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Issuer.Resend(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
