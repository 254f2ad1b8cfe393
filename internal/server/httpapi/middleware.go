package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/drmkeeper/internal/common"
	"github.com/dmitrijs2005/drmkeeper/internal/server/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// Authenticator validates the bearer token on every request and stores the
// authenticated user ID in the request context.
func Authenticator(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AccessTokenHeaderName)
			if header == "" {
				writeError(w, common.ErrorUnauthorized)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, common.ErrorUnauthorized)
				return
			}

			userID, err := auth.GetUserIDFromToken(parts[1], secretKey)
			if err != nil || userID == "" {
				writeError(w, common.ErrorUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID placed there by
// Authenticator.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}
