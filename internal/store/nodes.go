package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/frkn-dev/pony/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func isUniqueConstraint(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// UpsertNode inserts or updates a node and replaces its inbounds, all inside
// one transaction (4.1.1 step 2: "node+inbounds upsert runs as one
// transaction"). It reports whether the node was newly created.
func (s *Store) UpsertNode(n model.Node, nowNs int64) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existingCreatedAt int64
	err = tx.QueryRow(`SELECT created_at_ns FROM nodes WHERE env = ? AND id = ?`, n.Env, n.ID).Scan(&existingCreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		existingCreatedAt = nowNs
	case err != nil:
		return false, fmt.Errorf("query node: %w", err)
	}

	status := n.Status
	if status == "" {
		status = model.NodeOnline
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (id, env, hostname, address, interface, label, cores, max_bandwidth_bps, status, created_at_ns, modified_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(env, id) DO UPDATE SET
			hostname          = excluded.hostname,
			address           = excluded.address,
			interface         = excluded.interface,
			label             = excluded.label,
			cores             = excluded.cores,
			max_bandwidth_bps = excluded.max_bandwidth_bps,
			status            = excluded.status,
			modified_at_ns    = excluded.modified_at_ns
	`, n.ID, n.Env, n.Hostname, n.Address.String(), n.Interface, n.Label, n.Cores, n.MaxBandwidthBps, status, existingCreatedAt, nowNs)
	if err != nil {
		return false, fmt.Errorf("upsert node: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM inbounds WHERE node_env = ? AND node_id = ?`, n.Env, n.ID); err != nil {
		return false, fmt.Errorf("clear inbounds: %w", err)
	}
	for tag, ib := range n.Inbounds {
		ib.Tag = tag
		row, err := inboundToRow(ib)
		if err != nil {
			return false, fmt.Errorf("encode inbound %s: %w", tag, err)
		}
		_, err = tx.Exec(`
			INSERT INTO inbounds (node_env, node_id, tag, port, stream_settings, uplink, downlink, conn_count,
				wg_pubkey, wg_privkey, wg_interface, wg_network, wg_address, wg_port, wg_dns_json,
				hysteria2_obfs, mtproto_secret)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.Env, n.ID, row.tag, row.port, row.streamSettings, row.uplink, row.downlink, row.connCount,
			row.wgPubkey, row.wgPrivkey, row.wgInterface, row.wgNetwork, row.wgAddress, row.wgPort, row.wgDNSJSON,
			row.hysteria2Obfs, row.mtprotoSecret)
		if err != nil {
			if isUniqueConstraint(err) {
				return false, fmt.Errorf("%w: duplicate inbound tag %s for node %s", ErrConflict, tag, n.ID)
			}
			return false, fmt.Errorf("insert inbound %s: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// GetNode loads a node and its inbounds by (env, id).
func (s *Store) GetNode(env, id string) (model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, env, hostname, address, interface, label, cores, max_bandwidth_bps, status, created_at_ns, modified_at_ns
		FROM nodes WHERE env = ? AND id = ?`, env, id)

	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Node{}, ErrNotFound
		}
		return model.Node{}, err
	}

	inbounds, err := s.loadInbounds(env, id)
	if err != nil {
		return model.Node{}, err
	}
	n.Inbounds = inbounds
	return n, nil
}

// ListNodes returns every node in env, each with its inbounds populated.
func (s *Store) ListNodes(env string) ([]model.Node, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`
		SELECT id, env, hostname, address, interface, label, cores, max_bandwidth_bps, status, created_at_ns, modified_at_ns
		FROM nodes WHERE env = ?`, env)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range nodes {
		inbounds, err := s.loadInbounds(nodes[i].Env, nodes[i].ID)
		if err != nil {
			return nil, err
		}
		nodes[i].Inbounds = inbounds
	}
	return nodes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (model.Node, error) {
	var n model.Node
	var addrStr, status string
	var createdNs, modifiedNs int64
	err := row.Scan(&n.ID, &n.Env, &n.Hostname, &addrStr, &n.Interface, &n.Label, &n.Cores, &n.MaxBandwidthBps,
		&status, &createdNs, &modifiedNs)
	if err != nil {
		return n, err
	}
	addr, err := parseAddr(addrStr)
	if err != nil {
		return n, err
	}
	n.Address = addr
	n.Status = model.NodeStatus(status)
	n.CreatedAt = nsToTime(createdNs)
	n.ModifiedAt = nsToTime(modifiedNs)
	return n, nil
}

func (s *Store) loadInbounds(env, id string) (map[model.ProtoTag]model.Inbound, error) {
	s.mu.Lock()
	rows, err := s.db.Query(`
		SELECT tag, port, stream_settings, uplink, downlink, conn_count,
			wg_pubkey, wg_privkey, wg_interface, wg_network, wg_address, wg_port, wg_dns_json,
			hysteria2_obfs, mtproto_secret
		FROM inbounds WHERE node_env = ? AND node_id = ?`, env, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inbounds := make(map[model.ProtoTag]model.Inbound)
	for rows.Next() {
		var row inboundRow
		err := rows.Scan(&row.tag, &row.port, &row.streamSettings, &row.uplink, &row.downlink, &row.connCount,
			&row.wgPubkey, &row.wgPrivkey, &row.wgInterface, &row.wgNetwork, &row.wgAddress, &row.wgPort, &row.wgDNSJSON,
			&row.hysteria2Obfs, &row.mtprotoSecret)
		if err != nil {
			return nil, err
		}
		ib, err := rowToInbound(row)
		if err != nil {
			return nil, fmt.Errorf("decode inbound %s: %w", row.tag, err)
		}
		inbounds[model.ProtoTag(row.tag)] = ib
	}
	return inbounds, rows.Err()
}

// UpdateNodeStatus updates only status/modified_at, used by the health loop.
func (s *Store) UpdateNodeStatus(env, id string, status model.NodeStatus, nowNs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE nodes SET status = ?, modified_at_ns = ? WHERE env = ? AND id = ?`,
		status, nowNs, env, id)
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
