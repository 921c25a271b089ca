package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/buscoapp/busco/internal/auth"
	"github.com/buscoapp/busco/internal/store"
)

// RequireAuth validates the Authorization bearer token and populates the
// request session. The account type is read back from the database rather
// than trusted from the token, so upgrades and deletions take effect before
// the token expires.
func RequireAuth(secret string, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := auth.ValidateToken(secret, token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByID(claims.UserID)
			if err != nil || user == nil {
				unauthorized(w, "unknown user")
				return
			}

			sess := auth.Session{
				UserID:      user.ID,
				AccountType: user.AccountType,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

// RequireAdmin rejects sessions without the admin account type.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			forbidden(w, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePremium rejects sessions that may not use shopping list features.
func RequirePremium(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CanManageLists(r.Context()) {
			forbidden(w, "premium account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter, msg string) {
	jsonError(w, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter, msg string) {
	jsonError(w, http.StatusForbidden, msg)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
