package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"yzyvault/core/app"
	vaulterrors "yzyvault/core/errors"
	"yzyvault/native/vault"
	"yzyvault/services/vaultd/api"
)

var statusByCode = map[string]int{
	vaulterrors.ErrInvalidAmount.Code:       http.StatusBadRequest,
	vaulterrors.ErrInvalidParameter.Code:    http.StatusBadRequest,
	vaulterrors.ErrUnauthorized.Code:        http.StatusForbidden,
	vaulterrors.ErrNoFeeSource.Code:         http.StatusForbidden,
	vaulterrors.ErrInsufficientBalance.Code: http.StatusUnprocessableEntity,
	vaulterrors.ErrNoStakeableAsset.Code:    http.StatusConflict,
	vaulterrors.ErrNothingToClaim.Code:      http.StatusConflict,
	vaulterrors.ErrTokenPaused.Code:         http.StatusLocked,
	vaulterrors.ErrUnknownToken.Code:        http.StatusNotFound,
}

// badRequest marks malformed input detected by the handlers themselves.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func invalid(msg string) error { return badRequest{msg: msg} }

func classify(err error) (int, string) {
	if code := vaulterrors.Code(err); code != "" {
		if status, ok := statusByCode[code]; ok {
			return status, code
		}
	}
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, app.ErrRangeTooLarge):
		return http.StatusBadRequest, "range_too_large"
	case errors.Is(err, vault.ErrNotInitialised):
		return http.StatusServiceUnavailable, "not_initialised"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "requestId", requestID(r.Context()), "error", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, api.Error{Error: code, Message: msg, RequestID: requestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
