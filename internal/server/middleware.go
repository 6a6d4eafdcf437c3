package server

import (
	"fmt"
	"net/http"
	"strings"

	"fieldsign/internal/auth"
)

// requireAuth validates the bearer token and resolves the worker against
// the store so a disabled account or a stale tier claim is caught on every
// request, not just at login.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("missing bearer token")))
			return
		}

		claims, err := auth.ParseToken(s.jwtSecret, token)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid token")))
			return
		}

		user, err := s.store.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized,
				makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUserNotFound, fmt.Errorf("account no longer exists")))
			return
		}
		if user.Disabled {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("account disabled")))
			return
		}

		principal := authPrincipal{UserID: user.ID, Tier: user.Tier}
		next(w, r.WithContext(contextWithAuthPrincipal(r.Context(), principal)))
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) principal(r *http.Request) (authPrincipal, bool) {
	return authPrincipalFromContext(r.Context())
}
