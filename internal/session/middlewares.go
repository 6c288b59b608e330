package session

import (
	"context"
	"net/http"
)

type ctxKeySession string

const SessionContextKey ctxKeySession = "session"

// Validator middleware validates the session cookie if there is one in the given request and
// associate the session in the request's context with the key SessionContextKey.
//
// If no session cookie was found or if the token is not valid, abort the request with a 401 status.
func Validator(service Authorizer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			cookie, err := request.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			s, err := service.ValidateSession(ctx, cookie.Value)
			if err != nil {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx = context.WithValue(ctx, SessionContextKey, s)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// AllowedRole middleware checks if the authenticated session has the given role.
//
// If there is no session or if the session has another role, abort the request with a 401 or
// 403 status.
func AllowedRole(service Authorizer, role Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			s, err := service.GetAuthenticatedSession(request.Context())
			if err != nil {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			if s.Role() != role {
				writer.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
