package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/frkn-dev/pony/internal/model"
	"github.com/frkn-dev/pony/internal/store"
)

// UpsertSubscription creates or updates a subscription. Subscriptions carry
// no placement or WireGuard concerns and have no Message variant of their
// own, so the pipeline here is the plain validate/store/cache sequence of
// 4.1.1 with no publish step.
func (o *Orchestrator) UpsertSubscription(sub model.Subscription) (model.OperationStatus, error) {
	if sub.ID == "" {
		return model.StatusBadRequest, fmt.Errorf("subscription id must not be empty")
	}
	if sub.ExpiresAt.IsZero() {
		return model.StatusBadRequest, fmt.Errorf("expires_at must be set")
	}

	_, existed := o.Cache.GetSubscription(sub.ID)

	now := nowNs()
	if err := o.Store.UpsertSubscription(sub, now); err != nil {
		return model.StatusBadRequest, fmt.Errorf("upsert subscription: %w", err)
	}
	sub.UpdatedAt = time.Unix(0, now).UTC()
	if !existed {
		sub.CreatedAt = sub.UpdatedAt
	}

	o.Cache.PutSubscription(sub)
	if existed {
		return model.StatusUpdated, nil
	}
	return model.StatusOk, nil
}

// DeleteSubscription soft-deletes a subscription by id.
func (o *Orchestrator) DeleteSubscription(id string) (model.OperationStatus, error) {
	current, ok := o.Cache.GetSubscription(id)
	if !ok {
		return model.StatusNotFound, nil
	}
	if current.IsDeleted {
		return model.StatusDeletedPreviously, nil
	}

	if err := o.Store.SoftDeleteSubscription(id, nowNs()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.StatusNotFound, nil
		}
		return model.StatusBadRequest, err
	}

	current.IsDeleted = true
	o.Cache.PutSubscription(current)
	return model.StatusOk, nil
}

// GetSubscription returns a cached subscription by id.
func (o *Orchestrator) GetSubscription(id string) (model.Subscription, bool) {
	return o.Cache.GetSubscription(id)
}

// SubscriptionStat reports active/deleted connection counts for id, backing
// the /sub/stat endpoint.
func (o *Orchestrator) SubscriptionStat(id string) (active, deleted int, err error) {
	return o.Store.CountConnectionsForSubscription(id)
}
