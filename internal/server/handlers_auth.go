package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"fieldsign/internal/api"
	"fieldsign/internal/auth"
)

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	now := s.now()
	limiterKey := loginAttemptKey(req.Username, r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many login attempts; retry later"),
		})
		return
	}

	username, err := auth.NormalizeUsername(req.Username)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if user == nil || user.Disabled || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.loginLimiter.RegisterFailure(limiterKey, now)
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid credentials")))
		return
	}
	s.loginLimiter.Reset(limiterKey)

	token, expiresAt, err := auth.IssueToken(s.jwtSecret, user.ID, user.Tier, now, s.sessionTTL)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Tier:      user.Tier,
	})
}

func loginAttemptKey(username string, r *http.Request) string {
	user := strings.ToLower(strings.TrimSpace(username))
	if user == "" {
		user = "<empty>"
	}
	ip := requestClientIP(r)
	if ip == "" {
		ip = "<unknown>"
	}
	return ip + "|" + user
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
