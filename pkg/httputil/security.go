package httputil

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/poubelles/poubelles-backend/pkg/config"
	"github.com/unrolled/secure"
)

// CORS builds the cross-origin middleware from configuration
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           cfg.MaxAge,
	})
}

// SecureHeaders sets the usual hardening headers. HTTPS redirects are only
// enforced in production-like environments.
func SecureHeaders(environment string) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        config.IsProductionLike(environment),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})
	return sm.Handler
}

// RateLimit limits each client IP to requestsPerMinute. A non-positive value disables limiting.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(requestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			Raw(w, http.StatusTooManyRequests, MessageBody{Error: http.StatusText(http.StatusTooManyRequests)})
		}),
	)
}
