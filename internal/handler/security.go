package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "api_key"

type authError struct {
	status int
	msg    string
}

func (e *authError) Error() string { return e.msg }

var (
	errUnauthorized = &authError{status: http.StatusUnauthorized, msg: "Unauthorized"}
	errForbidden    = &authError{status: http.StatusForbidden, msg: "Forbidden"}
)

// Authenticator resolves API keys to principals. Keys are stored as the hex
// HMAC-SHA256 of the raw key under a server-side pepper.
type Authenticator struct {
	keys   auth.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(keys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// HashKey returns the stored form of a raw API key.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Authenticator) authenticate(r *http.Request) (auth.Principal, error) {
	key := r.Header.Get(APIKeyHeader)
	if key == "" {
		return auth.Principal{}, errUnauthorized
	}
	hash := HashKey(a.pepper, key)

	info, err := a.keys.FindByHash(r.Context(), hash)
	if errors.Is(err, auth.ErrNotFound) {
		return auth.Principal{}, errUnauthorized
	}
	if err != nil {
		return auth.Principal{}, errors.Wrap(err, "find api key")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return auth.Principal{}, errUnauthorized
	}
	return auth.Principal{
		UserID:   info.UserID,
		Username: info.Username,
		Email:    info.Email,
		Scopes:   info.Scopes,
	}, nil
}

// Require rejects requests without a valid key granting scope. The
// principal is stored in the request context.
func (a *Authenticator) Require(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.authenticate(r)
			if err != nil {
				fail(w, r, err)
				return
			}
			if !p.Has(scope) {
				fail(w, r, errForbidden)
				return
			}
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
