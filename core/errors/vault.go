package errors

import stderrors "errors"

// Error is a rejection surfaced to callers. Code is stable and safe to expose
// over the API; the message is for humans.
type Error struct {
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(code, msg string) *Error { return &Error{Code: code, msg: msg} }

var (
	ErrUnauthorized        = newError("unauthorized", "vault: caller is not governance")
	ErrInsufficientBalance = newError("insufficient_balance", "vault: insufficient balance")
	ErrInvalidAmount       = newError("invalid_amount", "vault: amount must be positive")
	ErrNoStakeableAsset    = newError("no_stakeable_asset", "vault: no stakeable asset configured")
	ErrNoFeeSource         = newError("no_fee_source", "vault: caller is not the configured fee source")
	ErrNothingToClaim      = newError("nothing_to_claim", "vault: nothing to claim")
	ErrInvalidParameter    = newError("invalid_parameter", "vault: invalid parameter")
	ErrTokenPaused         = newError("token_paused", "token: transfers paused")
	ErrUnknownToken        = newError("unknown_token", "token: unknown token")
)

// Code extracts the taxonomy code from err, or "" when err is not a vault
// rejection.
func Code(err error) string {
	var target *Error
	if stderrors.As(err, &target) {
		return target.Code
	}
	return ""
}

// Is mirrors errors.Is so callers importing this package need not alias the
// standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

var byCode = map[string]*Error{}

func init() {
	for _, err := range []*Error{
		ErrUnauthorized, ErrInsufficientBalance, ErrInvalidAmount, ErrNoStakeableAsset,
		ErrNoFeeSource, ErrNothingToClaim, ErrInvalidParameter, ErrTokenPaused, ErrUnknownToken,
	} {
		byCode[err.Code] = err
	}
}

// FromCode returns the sentinel registered for code, or nil.
func FromCode(code string) *Error { return byCode[code] }
