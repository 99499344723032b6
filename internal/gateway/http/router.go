package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ducgiangtran/switchboard/pkg/httpx"
	"github.com/ducgiangtran/switchboard/pkg/interclient"
	"github.com/ducgiangtran/switchboard/pkg/slogx"
)

// Router holds shared dependencies for the gateway's HTTP handlers. The
// gateway owns no state of its own: every route is a relay to a backend
// service with a freshly minted internal token.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Relay          *interclient.Relay
	UserServiceURL string
}

func NewRouter(relay *interclient.Relay, userServiceURL, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		logger:         logger,
		Relay:          relay,
		UserServiceURL: userServiceURL,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSessions()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &UsersProxy{Relay: r.Relay, UserServiceURL: r.UserServiceURL}

	r.Mux.Handle("POST /api/users",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /api/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("PUT /api/users/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsProxy{Relay: r.Relay, UserServiceURL: r.UserServiceURL}

	r.Mux.Handle("POST /api/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /api/sessions/{userID}",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
