package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/iamdebrajghosh/task-manager/internal/httpx"
	"github.com/iamdebrajghosh/task-manager/internal/token"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"go.uber.org/zap"
)

// LegacyTokenHeader is the pre-bearer header older clients still send.
const LegacyTokenHeader = "X-Auth-Token"

type identityContextKey struct{}

// IdentityFromContext returns the claims attached by Authenticate.
func IdentityFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(identityContextKey{}).(*token.Claims)
	return claims, ok
}

// Authenticate verifies the access token on every request from scratch; no
// per-request state survives between calls. The decoded claims ride the
// request context for downstream handlers.
func Authenticate(codec token.Codec, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractToken(r)
			if !ok {
				httpx.Unauthorized(w, "no token, authorization denied")
				return
			}

			claims, err := codec.VerifyAccess(tokenString)
			if err != nil {
				logger.Debug("access token rejected", zap.Error(err))
				httpx.Unauthorized(w, "token is not valid")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles composes with Authenticate and rejects identities whose role
// is not in the allowed set.
func RequireRoles(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.Unauthorized(w, "no token, authorization denied")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				httpx.Forbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken tries the conventional bearer header first, then the legacy
// header. The order is the whole compatibility story; adding a transport
// means extending this list.
func extractToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	if value := r.Header.Get("Authorization"); strings.HasPrefix(value, bearer) {
		if tokenString := strings.TrimSpace(value[len(bearer):]); tokenString != "" {
			return tokenString, true
		}
	}
	if tokenString := strings.TrimSpace(r.Header.Get(LegacyTokenHeader)); tokenString != "" {
		return tokenString, true
	}
	return "", false
}
