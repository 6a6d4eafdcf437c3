package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fieldsign/internal/api"
	"fieldsign/internal/policy"
	"fieldsign/internal/signing"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// writePolicyDenied renders a policy engine denial: 403 for tier quota and
// feature gates, 429 for a sliding-window rejection. The upgrade advisory
// travels in the error body.
func (s *Server) writePolicyDenied(w http.ResponseWriter, r *http.Request, decision policy.Decision) {
	status := http.StatusForbidden
	code := "policy_denied"
	numericCode := ErrCodePolicyDenied
	if decision.RateLimited {
		status = http.StatusTooManyRequests
		code = "rate_limited"
		numericCode = ErrCodeRateLimited
	}

	s.log().Debug("request denied by policy",
		"method", r.Method, "path", r.URL.Path, "status", status, "reason", decision.Reason)

	resp := api.ErrorResponse{Error: decision.Reason, Code: code, ErrorCode: numericCode}
	resp.Advisory = advisoryInfo(decision.Advisory)
	s.writeJSON(w, status, resp)
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func unauthorized(err error) error {
	return makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

// mapWorkflowError translates the signing workflow's typed errors into API
// errors. Persistence failures stay 500; a failed notification is reported
// as a bad gateway because the request record itself was committed.
func mapWorkflowError(err error) error {
	var validationErr *signing.ValidationError
	if errors.As(err, &validationErr) {
		return badRequestCode(err, ErrCodeInvalidContactAddr)
	}
	if errors.Is(err, signing.ErrNotAuthenticated) {
		return unauthorized(err)
	}
	if errors.Is(err, signing.ErrJobNotFound) {
		return notFoundCode(err, ErrCodeJobNotFound)
	}
	if errors.Is(err, signing.ErrRequestNotFound) {
		return notFoundCode(err, ErrCodeRequestNotFound)
	}
	var transitionErr *signing.TransitionError
	if errors.As(err, &transitionErr) {
		return conflictCode(err, ErrCodeBadTransition)
	}
	var notifyErr *signing.NotificationError
	if errors.As(err, &notifyErr) {
		return makeAPIError(http.StatusBadGateway, "notification_failed", ErrCodeNotificationFailed, err)
	}
	var persistErr *signing.PersistenceError
	if errors.As(err, &persistErr) {
		return storeFailure(err)
	}
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func (s *Server) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := mapWorkflowError(err)
	s.writeErrorReq(w, r, httpStatusFromError(mapped), mapped)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusBadGateway:
		return "notification_failed"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

// persistSignature stores a raw signature payload in the blob store and
// returns its content address. Without a configured store the payload is
// kept verbatim as the reference.
func (s *Server) persistSignature(ctx context.Context, data string) (string, error) {
	data = strings.TrimSpace(data)
	if data == "" || s.blobs == nil {
		return data, nil
	}
	result, err := s.blobs.Put(ctx, strings.NewReader(data))
	if err != nil {
		return "", err
	}
	return result.Key, nil
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID))
		return "", false
	}
	return id, true
}
