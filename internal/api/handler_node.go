package api

import (
	"net/http"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/orchestrator"
)

// HandleRegisterNode returns a handler for POST /node (§6): idempotent
// registration that sets the node's status to Online.
func HandleRegisterNode(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n model.Node
		if err := DecodeBody(r, &n); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		status, err := o.RegisterNode(n)
		writeOperationResult(w, status, err)
	}
}

// HandleGetNode returns a handler for GET /node?env=&id= (§6).
func HandleGetNode(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, ok := requireQueryParam(w, r, "env")
		if !ok {
			return
		}
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		n, ok := o.GetNode(env, id)
		if !ok {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "node not found")
			return
		}
		WriteJSON(w, http.StatusOK, n)
	}
}

// HandleListNodes returns a handler for GET /nodes?env= (§6).
func HandleListNodes(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, ok := requireQueryParam(w, r, "env")
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, o.ListNodes(env))
	}
}

type nodeScoreResponse struct {
	Score float64 `json:"score"`
}

// HandleNodeScore returns a handler for GET /node/score?env=&id= (§4.1.7).
func HandleNodeScore(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, ok := requireQueryParam(w, r, "env")
		if !ok {
			return
		}
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		score, err := o.NodeScore(env, id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, nodeScoreResponse{Score: score})
	}
}
