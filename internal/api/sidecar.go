package api

import "net/http"

// Authenticator is the auth sidecar's hot path (§4.3.2): validate a token
// against the in-memory cache and report the connection id it resolves to.
// Implemented by internal/sidecar.Sidecar; kept as a narrow interface here so
// the HTTP layer doesn't depend on the sidecar's cache/snapshot internals.
type Authenticator interface {
	Authenticate(token, addr string, tx uint64) (id string, ok bool)
}

// NewSidecarServer builds the sidecar's HTTP surface (§6): POST /auth and
// the shared unauthenticated GET /health-check. No bearer auth middleware
// wraps /auth — the token IS the credential being checked.
func NewSidecarServer(addr string, a Authenticator) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /health-check", HandleHealthz())
	mux.Handle("POST /auth", HandleAuth(a))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		mux:        mux,
	}
}

type authRequest struct {
	Auth string `json:"auth"`
	Addr string `json:"addr"`
	Tx   uint64 `json:"tx"`
}

type authResponse struct {
	Ok bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// HandleAuth returns a handler for POST /auth (§6).
func HandleAuth(a Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		id, ok := a.Authenticate(req.Auth, req.Addr, req.Tx)
		if !ok {
			WriteJSON(w, http.StatusOK, authResponse{Ok: false})
			return
		}
		WriteJSON(w, http.StatusOK, authResponse{Ok: true, ID: id})
	}
}
