// Package httpapi mounts the gateway's middleware chain (C3 -> C4 ->
// C6) and route table (C13) over a chi router, grounded on the
// original gateway's main.py wiring and api/metrics.py.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erauner12/attach-gateway/internal/auth"
)

// Server holds every wired component the router needs to build
// handlers: the C3 middleware config, the quota config (C5/C6/C7), the
// C10 dispatcher, the C12 task handlers, the metrics registry, and the
// auth-bootstrap values for C13's unauthenticated /auth/config route.
type Server struct {
	AuthConfig     auth.MiddlewareConfig
	Quota          QuotaConfig
	AllowedOrigins []string

	Dispatcher   http.Handler
	Tasks        TaskHandlers
	MetricsReg   *prometheus.Registry
	AuthDomain   string
	AuthClientID string
	OIDCAudience string
}

// Routes builds the full chi router: CORS at the outermost layer, then
// panic recovery and correlation-id propagation, then the C3 -> C4 ->
// C6 chain over every authenticated route from §6.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(s.AllowedOrigins))
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	r.Get("/auth/config", AuthConfig(s.AuthDomain, s.AuthClientID, s.OIDCAudience))
	r.Get("/docs", docsStub)
	r.Get("/redoc", docsStub)
	r.Get("/openapi.json", docsStub)

	r.Group(func(protected chi.Router) {
		protected.Use(auth.Middleware(s.AuthConfig))
		protected.Use(SessionMiddleware)
		protected.Use(QuotaMiddleware(s.Quota))

		protected.Post("/api/chat", Chat(s.Dispatcher))
		protected.Post("/a2a/tasks/send", s.Tasks.Send)
		protected.Get("/a2a/tasks/status/{id}", s.Tasks.Status)
		protected.Get("/v1/metrics", Metrics(s.MetricsReg))
	})

	return r
}

func docsStub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"detail": "see project README for API documentation"})
}
