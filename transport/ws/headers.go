package ws

import "net/http"

// editorCSP allows what the editor page needs: injected scripts are
// evaluated, images may be data or remote URLs, and the bridge socket is on
// the same host.
const editorCSP = "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data: blob: https: http:; " +
	"connect-src 'self' ws: wss:; frame-ancestors 'self'"

// securityHeaders sets the response headers of every route.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", editorCSP)
		next.ServeHTTP(w, r)
	})
}

// headToGet lets HEAD requests reach the GET routes.
func headToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
