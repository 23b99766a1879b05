package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frkn-dev/pony/internal/model"
)

// ConnectionFilters narrows ListConnections; zero values are "no filter".
type ConnectionFilters struct {
	Env        string
	ProtoTag   model.ProtoTag
	LastUpdate int64 // unix nanos; zero means "all"
}

// InsertConnection creates a new connection row. Returns ErrConflict if the
// id already exists.
func (s *Store) InsertConnection(c model.Connection, nowNs int64) error {
	protoTag, password, wgPriv, wgPub, wgAddr, wgNodeID, token := protoToColumns(c.Proto)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO connections (id, env, subscription_id, proto_tag, password, wg_privkey, wg_pubkey,
			wg_address, wg_node_id, hysteria2_token, is_trial, daily_limit_mb, uplink, downlink, online,
			status, created_at_ns, modified_at_ns, expired_at_ns, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 'Active', ?, ?, ?, 0)
	`, c.ID, c.Env, c.SubscriptionID, protoTag, password, wgPriv, wgPub, wgAddr, wgNodeID, token,
		c.IsTrial, c.DailyLimitMB, nowNs, nowNs, expiredAtNs(c.ExpiredAt))
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("%w: connection %s already exists", ErrConflict, c.ID)
		}
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func expiredAtNs(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

// GetConnection loads a connection by id, including soft-deleted rows (the
// caller decides whether a deleted row is a NotFound).
func (s *Store) GetConnection(id string) (model.Connection, error) {
	s.mu.Lock()
	row := s.db.QueryRow(connectionSelectColumns+` FROM connections WHERE id = ?`, id)
	s.mu.Unlock()

	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Connection{}, ErrNotFound
		}
		return model.Connection{}, err
	}
	return c, nil
}

const connectionSelectColumns = `
	SELECT id, env, subscription_id, proto_tag, password, wg_privkey, wg_pubkey, wg_address, wg_node_id,
		hysteria2_token, is_trial, daily_limit_mb, uplink, downlink, online, status,
		created_at_ns, modified_at_ns, expired_at_ns, is_deleted`

func scanConnection(row rowScanner) (model.Connection, error) {
	var c model.Connection
	var protoTag, password, wgPriv, wgPub, wgAddr, wgNodeID, token, status string
	var createdNs, modifiedNs, expiredNs int64
	var isDeleted int

	err := row.Scan(&c.ID, &c.Env, &c.SubscriptionID, &protoTag, &password, &wgPriv, &wgPub, &wgAddr, &wgNodeID,
		&token, &c.IsTrial, &c.DailyLimitMB, &c.Stat.Uplink, &c.Stat.Downlink, &c.Stat.Online, &status,
		&createdNs, &modifiedNs, &expiredNs, &isDeleted)
	if err != nil {
		return c, err
	}

	proto, err := columnsToProto(protoTag, password, wgPriv, wgPub, wgAddr, wgNodeID, token)
	if err != nil {
		return c, fmt.Errorf("connection %s: %w", c.ID, err)
	}
	c.Proto = proto
	c.CreatedAt = nsToTime(createdNs)
	c.ModifiedAt = nsToTime(modifiedNs)
	if expiredNs != 0 {
		t := nsToTime(expiredNs)
		c.ExpiredAt = &t
	}
	c.IsDeleted = isDeleted != 0
	c.Status = model.ConnectionStatus(status)
	return c, nil
}

// ListConnections returns connections matching filters, ordered by id for
// stable pagination-free listing.
func (s *Store) ListConnections(f ConnectionFilters) ([]model.Connection, error) {
	query := connectionSelectColumns + ` FROM connections WHERE 1=1`
	var args []any
	if f.Env != "" {
		query += ` AND env = ?`
		args = append(args, f.Env)
	}
	if f.ProtoTag != "" {
		query += ` AND proto_tag = ?`
		args = append(args, string(f.ProtoTag))
	}
	if f.LastUpdate != 0 {
		query += ` AND modified_at_ns > ?`
		args = append(args, f.LastUpdate)
	}
	query += ` ORDER BY id`

	s.mu.Lock()
	rows, err := s.db.Query(query, args...)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListWireguardAddressesForNode returns the WireGuard addresses currently
// assigned to non-deleted connections on node nodeID. Placement reads these
// from the cache (internal/cache), not from this query.
func (s *Store) ListWireguardAddressesForNode(nodeID string) ([]string, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`
		SELECT wg_address FROM connections
		WHERE proto_tag = 'Wireguard' AND wg_node_id = ? AND is_deleted = 0`, nodeID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// CountWireguardByNode returns the non-deleted WireGuard connection count per
// node id in env. Placement's least-loaded selection counts from the cache
// (Cache.WireguardLoad), not from this query.
func (s *Store) CountWireguardByNode(env string) (map[string]int, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`
		SELECT wg_node_id, COUNT(*) FROM connections
		WHERE proto_tag = 'Wireguard' AND env = ? AND is_deleted = 0
		GROUP BY wg_node_id`, env)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var nodeID string
		var n int
		if err := rows.Scan(&nodeID, &n); err != nil {
			return nil, err
		}
		counts[nodeID] = n
	}
	return counts, rows.Err()
}

// UpdateConnectionFields applies a partial update. Returns the updated
// connection and whether any field actually changed (4.1.2: "If no field
// actually changes value, return NotModified").
func (s *Store) UpdateConnectionFields(id string, req model.UpdateConnectionRequest, nowNs int64) (model.Connection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return model.Connection{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(connectionSelectColumns+` FROM connections WHERE id = ?`, id)
	current, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Connection{}, false, ErrNotFound
		}
		return model.Connection{}, false, err
	}

	changed := false
	newPassword := ""
	if ss, ok := current.Proto.(model.ShadowsocksProto); ok {
		newPassword = ss.Password
	}
	isDeleted := current.IsDeleted
	expiredAt := current.ExpiredAt

	if req.Password != nil {
		if _, ok := current.Proto.(model.ShadowsocksProto); !ok {
			return model.Connection{}, false, fmt.Errorf("password may only be set for Shadowsocks connections")
		}
		if *req.Password != newPassword {
			newPassword = *req.Password
			changed = true
		}
	}
	if req.IsDeleted != nil {
		if *req.IsDeleted != isDeleted {
			isDeleted = *req.IsDeleted
			changed = true
		}
	}
	if req.ExpiredAt != nil {
		if expiredAt == nil || !expiredAt.Equal(*req.ExpiredAt) {
			expiredAt = req.ExpiredAt
			changed = true
		}
	}

	if !changed {
		return current, false, nil
	}

	_, err = tx.Exec(`
		UPDATE connections SET password = ?, is_deleted = ?, expired_at_ns = ?, modified_at_ns = ?
		WHERE id = ?`, newPassword, boolToInt(isDeleted), expiredAtNs(expiredAt), nowNs, id)
	if err != nil {
		return model.Connection{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.Connection{}, false, err
	}

	if ss, ok := current.Proto.(model.ShadowsocksProto); ok {
		ss.Password = newPassword
		current.Proto = ss
	}
	current.IsDeleted = isDeleted
	current.ExpiredAt = expiredAt
	current.ModifiedAt = nsToTime(nowNs)
	return current, true, nil
}

// SoftDeleteConnection marks a connection deleted. Returns ErrNotFound if
// absent, and wasAlreadyDeleted=true with no write if the row was already
// deleted (the caller maps that to 4.1.1's DeletedPreviously outcome).
func (s *Store) SoftDeleteConnection(id string, nowNs int64) (wasAlreadyDeleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var isDeleted int
	err = s.db.QueryRow(`SELECT is_deleted FROM connections WHERE id = ?`, id).Scan(&isDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if isDeleted != 0 {
		return true, nil
	}

	_, err = s.db.Exec(`UPDATE connections SET is_deleted = 1, modified_at_ns = ? WHERE id = ?`, nowNs, id)
	return false, err
}

// UpdateConnectionStat applies uplink/downlink/online counters reported by
// an agent's stat loop; does not bump modified_at (stat updates are not
// content mutations per 4.1.1's OperationStatus taxonomy, which has a
// dedicated UpdatedStat outcome).
func (s *Store) UpdateConnectionStat(id string, uplink, downlink uint64, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE connections SET uplink = ?, downlink = ?, online = ? WHERE id = ?`,
		uplink, downlink, online, id)
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

// ExpireTrialConnection marks a trial connection Expired (quota loop).
func (s *Store) ExpireTrialConnection(id string, nowNs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE connections SET status = 'Expired', modified_at_ns = ? WHERE id = ?`, nowNs, id)
	return err
}

// ReactivateTrialConnection flips an Expired trial connection back to Active.
func (s *Store) ReactivateTrialConnection(id string, nowNs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE connections SET status = 'Active', modified_at_ns = ? WHERE id = ?`, nowNs, id)
	return err
}

// ListExpiredTrialConnectionsOlderThan returns Expired trial connections
// whose modified_at is older than cutoffNs, for the reactivation loop.
func (s *Store) ListExpiredTrialConnectionsOlderThan(cutoffNs int64) ([]model.Connection, error) {
	s.mu.Lock()
	rows, err := s.db.Query(connectionSelectColumns+`
		FROM connections WHERE is_trial = 1 AND status = 'Expired' AND modified_at_ns < ? AND is_deleted = 0`,
		cutoffNs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveTrialConnections returns non-deleted, Active trial connections,
// for the quota loop's scan.
func (s *Store) ListActiveTrialConnections() ([]model.Connection, error) {
	s.mu.Lock()
	rows, err := s.db.Query(connectionSelectColumns+`
		FROM connections WHERE is_trial = 1 AND status = 'Active' AND is_deleted = 0`)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
