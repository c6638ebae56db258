package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds short JSON endpoints. The response is buffered by
// http.TimeoutHandler, so keep it off long-running routes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"error":"Request timed out"}`

	return func(next http.Handler) http.Handler {
		guarded := http.TimeoutHandler(next, timeout, message)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// TimeoutHandler writes its body straight to w; every route behind
			// it answers JSON, so the type is set up front.
			w.Header().Set("Content-Type", "application/json")
			guarded.ServeHTTP(w, r)
		})
	}
}

// LongRunning lets a route outlive the server-wide write timeout. The
// connection deadlines are pushed out to maxDuration and the request context
// is cancelled when it elapses. Nothing is buffered.
func LongRunning(maxDuration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			deadline := time.Now().Add(maxDuration)
			_ = rc.SetWriteDeadline(deadline)
			_ = rc.SetReadDeadline(deadline)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
