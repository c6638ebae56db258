package handler

import (
	"net/http"

	"aakar-gateway/internal/middleware"
)

// requestActor names who issued a request for event payloads: the token
// subject when one was verified, and always the client address.
func requestActor(r *http.Request) (userID string, ip string) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		userID = claims.UserID
	}
	return userID, middleware.ClientIP(r)
}
