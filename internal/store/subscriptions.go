package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/frkn-dev/pony/internal/model"
)

// UpsertSubscription inserts or updates a subscription by id.
func (s *Store) UpsertSubscription(sub model.Subscription, nowNs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO subscriptions (id, expires_at_ns, referral_code, referred_by, referral_count,
			referral_bonus_days, created_at_ns, updated_at_ns, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			expires_at_ns       = excluded.expires_at_ns,
			referral_code       = excluded.referral_code,
			referred_by         = excluded.referred_by,
			referral_count      = excluded.referral_count,
			referral_bonus_days = excluded.referral_bonus_days,
			updated_at_ns       = excluded.updated_at_ns
	`, sub.ID, timeToNs(sub.ExpiresAt), sub.ReferralCode, sub.ReferredBy, sub.ReferralCount,
		sub.ReferralBonusDays, nowNs, nowNs, boolToInt(sub.IsDeleted))
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("%w: subscription %s already exists", ErrConflict, sub.ID)
		}
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription loads a subscription by id.
func (s *Store) GetSubscription(id string) (model.Subscription, error) {
	s.mu.Lock()
	row := s.db.QueryRow(`
		SELECT id, expires_at_ns, referral_code, referred_by, referral_count, referral_bonus_days,
			created_at_ns, updated_at_ns, is_deleted
		FROM subscriptions WHERE id = ?`, id)
	s.mu.Unlock()

	var sub model.Subscription
	var expiresNs, createdNs, updatedNs int64
	var isDeleted int
	err := row.Scan(&sub.ID, &expiresNs, &sub.ReferralCode, &sub.ReferredBy, &sub.ReferralCount,
		&sub.ReferralBonusDays, &createdNs, &updatedNs, &isDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Subscription{}, ErrNotFound
		}
		return model.Subscription{}, err
	}
	sub.ExpiresAt = nsToTime(expiresNs)
	sub.CreatedAt = nsToTime(createdNs)
	sub.UpdatedAt = nsToTime(updatedNs)
	sub.IsDeleted = isDeleted != 0
	return sub, nil
}

// SoftDeleteSubscription marks a subscription deleted.
func (s *Store) SoftDeleteSubscription(id string, nowNs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE subscriptions SET is_deleted = 1, updated_at_ns = ? WHERE id = ?`, nowNs, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountConnectionsForSubscription reports connection counts grouped by
// deletion state, used by the /sub/stat endpoint.
func (s *Store) CountConnectionsForSubscription(subscriptionID string) (active, deleted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN is_deleted = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_deleted = 1 THEN 1 ELSE 0 END), 0)
		FROM connections WHERE subscription_id = ?`, subscriptionID).Scan(&active, &deleted)
	return active, deleted, err
}
