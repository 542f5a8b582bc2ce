package handlers

import (
	"net/http"
	"strings"

	"mov-converter/internal/logging"
	"mov-converter/internal/metrics"

	"golang.org/x/crypto/bcrypt"
)

const authRealm = "MOV Converter"

// isPublicPath reports whether path is served without credentials.
func isPublicPath(path string) bool {
	switch path {
	case "/health", "/healthz", "/livez", "/readyz", "/version", "/favicon.ico":
		return true
	}
	return false
}

// AuthMiddleware enforces HTTP basic auth against the configured bcrypt
// hash. The username is ignored. With no hash configured every request
// passes through.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	if len(h.passwordHash) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w, r)
			return
		}

		if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(password)); err != nil {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			logging.Warn("Failed authentication from %s: %v", r.RemoteAddr, err)
			unauthorized(w, r)
			return
		}

		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`", charset="UTF-8"`)
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
