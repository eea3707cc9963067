package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/metaco/metaco/internal/models"
)

const (
	bearerPrefix     = "Bearer "
	apiKeyQueryParam = "api-key" // EventSource cannot set headers
)

var errUnauthorized = &models.AppError{
	Code:    "UNAUTHORIZED",
	Message: "missing or invalid API token",
	Status:  http.StatusUnauthorized,
}

// Middleware returns an http.Handler middleware that enforces authentication.
// In open mode all requests pass through. Otherwise a token must arrive as
// an Authorization bearer header or the api-key query parameter.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
			if s.VerifyKey(strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if key := r.URL.Query().Get(apiKeyQueryParam); key != "" {
			if s.VerifyKey(key) {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("WWW-Authenticate", `Bearer realm="metaco"`)
		w.WriteHeader(errUnauthorized.Status)
		_ = json.NewEncoder(w).Encode(errUnauthorized)
	})
}
