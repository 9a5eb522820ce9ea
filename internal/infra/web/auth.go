package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/infra/logging"
)

// Claims carried by bearer tokens. Subject is the account ID.
type Claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID string
	Admin     bool
}

type principalKey struct{}

// PrincipalFrom extracts the authenticated caller from a request context.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// AuthManager signs and parses bearer tokens (HS256).
type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// Mint issues a token for an account. Used by the seeder and by tests.
func (a *AuthManager) Mint(accountID string, admin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) parse(tok string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, domain.ErrUnauthenticated
	}
	return claims, nil
}

// Authenticate resolves the bearer token into a Principal and stashes it (and
// the account ID for log correlation) on the request context.
func (a *AuthManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		claims, err := a.parse(strings.TrimSpace(hdr[7:]))
		if err != nil {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		p := Principal{AccountID: claims.Subject, Admin: claims.Admin}
		ctx := context.WithValue(r.Context(), principalKey{}, p)
		ctx = logging.WithAccountID(ctx, p.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a subtree to admin principals.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		if !p.Admin {
			writeError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
