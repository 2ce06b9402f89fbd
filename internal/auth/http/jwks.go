package http

import (
	"net/http"

	"github.com/aussiebroadwan/authflow/pkg/authsdk"
	"github.com/aussiebroadwan/authflow/pkg/httpx"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
)

// JWKSHandler exposes the public keys that verify access and action tokens.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify JWTs.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Verifiers may cache the set; new kids only appear on restart.
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
