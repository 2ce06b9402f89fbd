package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
)

// maxBatchUsers bounds GET /v1/users?ids=.
const maxBatchUsers = 100

type UsersHandler struct {
	UserService *service.UserService
}

func userResponse(u domain.UserDTO) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		PendingEmail:    u.PendingEmail,
		EmailVerifiedAt: u.EmailVerifiedAt,
		Roles:           u.Roles,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// HandleRegister creates an account and sends its verification link.
//
//	@Summary		Register
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Email and password"
//	@Success		201		{object}	authsdk.UserResponse	"Created user"
//	@Failure		400		{object}	authsdk.APIError		"Invalid email or weak password"
//	@Failure		409		{object}	authsdk.APIError		"Email already in use"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	u, err := h.UserService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, userResponse(u.DTO()))
}

// HandleGet returns a user. Callers may read themselves; admins anyone.
//
//	@Summary		Get a user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string					true	"User id"
//	@Success		200	{object}	authsdk.UserResponse	"User"
//	@Failure		401	{object}	authsdk.APIError		"Missing or invalid access token"
//	@Failure		403	{object}	authsdk.APIError		"Not your account"
//	@Failure		404	{object}	authsdk.APIError		"Unknown user"
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor, _ := domain.ActorFromContext(r.Context())
	if !actor.CanManage(id) {
		authsdk.ErrForbidden.WriteError(w)
		return
	}

	u, err := h.UserService.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, userResponse(*u))
}

// HandleList returns several users by id, in the order asked for. Unknown ids
// are skipped.
//
//	@Summary		Get users
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			ids	query		string					true	"Comma separated user ids"
//	@Success		200	{array}		authsdk.UserResponse	"Users"
//	@Failure		400	{object}	authsdk.APIError		"Missing or too many ids"
//	@Failure		403	{object}	authsdk.APIError		"Admin role required"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for id := range strings.SplitSeq(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) > maxBatchUsers {
		authsdk.NewValidationError("ids must list between 1 and 100 user ids").WriteError(w)
		return
	}

	users, err := h.UserService.GetUsers(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]authsdk.UserResponse, len(users))
	for i, u := range users {
		out[i] = userResponse(u)
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleEmailChange sets a pending email and sends a verification link to it.
//
//	@Summary		Change email
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Param			id		path	string						true	"User id"
//	@Param			request	body	authsdk.EmailChangeRequest	true	"New email"
//	@Success		202		"Verification sent"
//	@Failure		400		{object}	authsdk.APIError	"Invalid email"
//	@Failure		403		{object}	authsdk.APIError	"Not your account"
//	@Failure		409		{object}	authsdk.APIError	"Email already in use"
//	@Router			/v1/users/{id}/email [post].
func (h *UsersHandler) HandleEmailChange(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.UserService.RequestEmailChange(r.Context(), r.PathValue("id"), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
