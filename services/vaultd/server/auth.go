package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"yzyvault/crypto"
	"yzyvault/services/vaultd/api"
)

// AuthConfig configures bearer token verification. The token's sub claim is
// the caller address.
type AuthConfig struct {
	HMACSecret     []byte
	Issuer         string
	Audience       string
	AnonymousReads bool
	ClockSkew      time.Duration
}

type callerKey struct{}

// CallerFrom returns the authenticated caller stored on ctx.
func CallerFrom(ctx context.Context) (crypto.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(crypto.Address)
	return addr, ok
}

type authenticator struct {
	cfg AuthConfig
}

func newAuthenticator(cfg AuthConfig) (*authenticator, error) {
	if len(cfg.HMACSecret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &authenticator{cfg: cfg}, nil
}

// require rejects requests without a valid token. When anonymous is true a
// missing token is accepted but a present one must still verify.
func (a *authenticator) require(anonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r.Header.Get("Authorization"))
			if raw == "" {
				raw = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if raw == "" {
				if anonymous {
					next.ServeHTTP(w, r)
					return
				}
				writeJSON(w, http.StatusUnauthorized, api.Error{Error: "unauthenticated", Message: "missing bearer token", RequestID: requestID(r.Context())})
				return
			}
			caller, err := a.verify(raw)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, api.Error{Error: "unauthenticated", Message: "invalid token", RequestID: requestID(r.Context())})
				return
			}
			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *authenticator) verify(raw string) (crypto.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.cfg.HMACSecret, nil
	}, opts...)
	if err != nil {
		return crypto.ZeroAddress, err
	}
	if !token.Valid {
		return crypto.ZeroAddress, errors.New("token invalid")
	}
	caller, err := crypto.ParseAddress(claims.Subject)
	if err != nil {
		return crypto.ZeroAddress, fmt.Errorf("subject: %w", err)
	}
	return caller, nil
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// IssueToken signs an HS256 token naming caller as subject.
func IssueToken(secret []byte, caller crypto.Address, issuer, audience string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	claims := jwt.RegisteredClaims{
		Subject:   caller.Hex(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
