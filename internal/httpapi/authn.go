package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"walletd.org/internal/auth"
	"walletd.org/internal/obs"
)

const bearerPrefix = "Bearer "

// withAuth validates the bearer token and stores the resulting principal
// in the request context. The 401 body never says which check failed.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
			return
		}

		claims, err := a.identity.Tokens().Validate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				obs.TokenRejectionsTotal.Inc()
				writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), auth.PrincipalFromClaims(claims))
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates the admin route group.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing or invalid credential")
			return
		}
		if err := auth.RequireAdmin(p); err != nil {
			writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
