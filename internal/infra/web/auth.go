package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/infra/logging"
)

type principalKey struct{}

// SessionClaims is the shape minted by the external session collaborator.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// principalFrom extracts the authenticated principal a middleware stored.
func principalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}

// authMiddleware authenticates the dashboard session (Authorization: Bearer
// <jwt>) and passes a strongly-typed principal downstream. The webhook route
// is NOT behind this; the gateway authenticates with its signature instead.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.parseSession(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		principal := model.Principal{AccountID: claims.Subject, Email: claims.Email}
		if principal.AccountID == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		ctx = logging.WithAccountID(ctx, principal.AccountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) parseSession(r *http.Request) (*SessionClaims, error) {
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(hdr[7:])

	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}
