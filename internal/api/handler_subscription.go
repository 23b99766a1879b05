package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/orchestrator"
)

type createSubscriptionRequest struct {
	ID                string    `json:"id"`
	ExpiresAt         time.Time `json:"expires_at"`
	ReferralCode      string    `json:"referral_code,omitempty"`
	ReferredBy        string    `json:"referred_by,omitempty"`
	ReferralBonusDays int       `json:"referral_bonus_days,omitempty"`
}

// HandleUpsertSubscription returns a handler for POST /subscription: durable
// CRUD for Subscription (§4.1's orchestrator responsibilities), created or
// updated by id like node registration.
func HandleUpsertSubscription(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSubscriptionRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		status, err := o.UpsertSubscription(model.Subscription{
			ID:                req.ID,
			ExpiresAt:         req.ExpiresAt,
			ReferralCode:      req.ReferralCode,
			ReferredBy:        req.ReferredBy,
			ReferralBonusDays: req.ReferralBonusDays,
		})
		writeOperationResult(w, status, err)
	}
}

// HandleGetSubscription returns a handler for GET /subscription?id=.
func HandleGetSubscription(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		sub, ok := o.GetSubscription(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "subscription not found")
			return
		}
		WriteJSON(w, http.StatusOK, sub)
	}
}

// HandleDeleteSubscription returns a handler for DELETE /subscription?id=.
func HandleDeleteSubscription(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		status, err := o.DeleteSubscription(id)
		writeOperationResult(w, status, err)
	}
}

// HandleSubInfo returns a handler for GET /sub/info?id=&env= (§6): the
// landing page stub. Full subscription-link rendering is out of scope (§1
// Non-goals); this returns a minimal HTML page confirming the subscription
// is live and listing its connection count.
func HandleSubInfo(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		sub, ok := o.GetSubscription(id)
		if !ok || sub.IsDeleted {
			http.NotFound(w, r)
			return
		}
		active, _, err := o.SubscriptionStat(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "<!doctype html><html><body><h1>Subscription %s</h1>"+
			"<p>Expires: %s</p><p>Active connections: %d</p></body></html>",
			sub.ID, sub.ExpiresAt.Format(time.RFC3339), active)
	}
}

type subStatResponse struct {
	Active  int `json:"active"`
	Deleted int `json:"deleted"`
}

// HandleSubStat returns a handler for GET /sub/stat?id= (§6).
func HandleSubStat(o *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireQueryParam(w, r, "id")
		if !ok {
			return
		}
		active, deleted, err := o.SubscriptionStat(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, subStatResponse{Active: active, Deleted: deleted})
	}
}
