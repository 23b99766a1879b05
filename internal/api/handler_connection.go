package api

import (
	"net/http"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/orchestrator"
	"github.com/frkn-dev/pony/internal/store"
)

type createConnectionRequest struct {
	ID             string          `json:"id"`
	Env            string          `json:"env"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	ProtoTag       model.ProtoTag  `json:"proto"`
	Password       string          `json:"password,omitempty"`
	NodeID         string          `json:"node_id,omitempty"`
	WgParam        *model.WgParam  `json:"wg_param,omitempty"`
	CIDRBits       int             `json:"cidr_bits,omitempty"`
	Hysteria2Token string          `json:"hysteria2_token,omitempty"`
	IsTrial        bool            `json:"is_trial,omitempty"`
	DailyLimitMB   uint64          `json:"daily_limit_mb,omitempty"`
}

// HandleCreateConnection returns a handler for POST /connection (§4.1.2).
func HandleCreateConnection(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConnectionRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		status, err := o.CreateConnection(orchestrator.CreateConnectionRequest{
			ID:             req.ID,
			Env:            req.Env,
			SubscriptionID: req.SubscriptionID,
			ProtoTag:       req.ProtoTag,
			Password:       req.Password,
			NodeID:         req.NodeID,
			WgParam:        req.WgParam,
			CIDRBits:       req.CIDRBits,
			Hysteria2Token: req.Hysteria2Token,
			IsTrial:        req.IsTrial,
			DailyLimitMB:   req.DailyLimitMB,
		})
		writeOperationResult(w, status, err)
	}
}

// HandleUpdateConnection returns a handler for PUT /connection?id= (§4.1.2):
// a partial update, rejecting a password on any non-Shadowsocks connection.
func HandleUpdateConnection(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		var req model.UpdateConnectionRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		status, err := o.UpdateConnection(id, req)
		writeOperationResult(w, status, err)
	}
}

// HandleDeleteConnection returns a handler for DELETE /connection?id=.
func HandleDeleteConnection(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		status, err := o.DeleteConnection(id)
		writeOperationResult(w, status, err)
	}
}

// HandleGetConnection returns a handler for GET /connection?id=.
func HandleGetConnection(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		conn, ok := o.GetConnection(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "connection not found")
			return
		}
		WriteJSON(w, http.StatusOK, conn)
	}
}

// HandleListConnections returns a handler for
// GET /connections?proto=&env=&last_update= (§4.3.1), the delta catch-up
// query. The matching connections are not returned in the response body:
// the orchestrator publishes them as a batch on the env's pub/sub topic and
// this handler only acks the request, matching the original's
// publish-then-ack handling (the caller relies entirely on its own
// subscriber to receive the delta).
func HandleListConnections(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lastUpdate, err := queryLastUpdate(r)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		filters := store.ConnectionFilters{
			Env:        r.URL.Query().Get("env"),
			ProtoTag:   model.ProtoTag(r.URL.Query().Get("proto")),
			LastUpdate: lastUpdate,
		}
		if err := o.PublishConnectionDelta(filters); err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		writeOperationResult(w, model.StatusOk, nil)
	}
}

type updateConnectionStatRequest struct {
	Uplink   uint64 `json:"uplink"`
	Downlink uint64 `json:"downlink"`
	Online   bool   `json:"online"`
}

// HandleUpdateConnectionStat returns a handler for PUT /connection/stat?id=
// (added, §4.2.3): the agent stat loop's traffic-counter push, kept separate
// from HandleUpdateConnection so a stat report can never be mistaken for the
// user-facing partial update with its password-mutation rule.
func HandleUpdateConnectionStat(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		var req updateConnectionStatRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		status, err := o.UpdateConnectionStat(id, model.ConnStat{
			Uplink:   req.Uplink,
			Downlink: req.Downlink,
			Online:   req.Online,
		})
		writeOperationResult(w, status, err)
	}
}
