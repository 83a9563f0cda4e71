package httpx

import (
	"context"
	"net/http"
)

// Identity headers are set by the gateway in front of the API.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	RoleAdmin      = "admin"
)

type ctxKey int

const userKey ctxKey = iota

type User struct {
	ID   string
	Role string
}

func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// RequireUser rejects requests without a user id.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderUserID)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "missing " + HeaderUserID + " header"})
			return
		}
		u := User{ID: id, Role: r.Header.Get(HeaderUserRole)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, _ := UserFrom(r.Context()); u.Role != RoleAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
