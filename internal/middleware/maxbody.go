package middleware

import "net/http"

// MaxBodySize caps request body reads at n bytes. Only the chat route accepts
// a body, and a chat turn should never be anywhere near the cap.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
