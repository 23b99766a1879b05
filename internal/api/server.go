package api

import (
	"context"
	"net/http"

	"github.com/frkn-dev/pony/internal/config"
	"github.com/frkn-dev/pony/internal/orchestrator"
)

// Server wraps the orchestrator's REST surface (§6).
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with every route in §6: node and
// connection CRUD, subscription CRUD, the subscription landing page/stat
// endpoints, and the unauthenticated health check.
func NewServer(env *config.EnvConfig, o *orchestrator.Orchestrator) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /health-check", HandleHealthz())

	authed := http.NewServeMux()

	authed.Handle("POST /node", HandleRegisterNode(o))
	authed.Handle("GET /node", HandleGetNode(o))
	authed.Handle("GET /nodes", HandleListNodes(o))
	authed.Handle("GET /node/score", HandleNodeScore(o))

	authed.Handle("POST /connection", HandleCreateConnection(o))
	authed.Handle("PUT /connection", HandleUpdateConnection(o))
	authed.Handle("DELETE /connection", HandleDeleteConnection(o))
	authed.Handle("GET /connection", HandleGetConnection(o))
	authed.Handle("GET /connections", HandleListConnections(o))
	authed.Handle("PUT /connection/stat", HandleUpdateConnectionStat(o))

	authed.Handle("POST /subscription", HandleUpsertSubscription(o))
	authed.Handle("GET /subscription", HandleGetSubscription(o))
	authed.Handle("DELETE /subscription", HandleDeleteSubscription(o))
	authed.Handle("GET /sub/info", HandleSubInfo(o))
	authed.Handle("GET /sub/stat", HandleSubStat(o))

	limitedAuthed := RequestBodyLimitMiddleware(int64(env.APIMaxBodyBytes), authed)
	mux.Handle("/", AuthMiddleware(env.BearerToken, limitedAuthed))

	srv := &http.Server{
		Addr:    env.ListenAddress,
		Handler: mux,
	}

	return &Server{httpServer: srv, mux: mux}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
