package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dinukastorehub-cmd/ODF-data/internal/frame"
)

// SQLStore is the relational backend. Multi-row writes (port replacement,
// roster reconciliation) each run in a single transaction with
// rollback-on-error, so partial effects are never visible.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) GetEntry(ctx context.Context, region, sub string) (json.RawMessage, error) {
	var (
		displayCount int
		defsJSON     string
		extraJSON    string
		lastSave     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT display_count, extra_field_defs, extra_json, last_save
		FROM frames
		WHERE region=$1 AND sub=$2
	`, region, sub).Scan(&displayCount, &defsJSON, &extraJSON, &lastSave)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}

	entry := frame.Entry{
		Region:       region,
		Sub:          sub,
		DisplayCount: displayCount,
		LastSave:     lastSave,
	}
	if err := json.Unmarshal([]byte(defsJSON), &entry.ExtraFieldDefs); err != nil {
		return nil, fmt.Errorf("decode field defs: %w", err)
	}
	if err := json.Unmarshal([]byte(extraJSON), &entry.Extra); err != nil {
		return nil, fmt.Errorf("decode extra fields: %w", err)
	}

	ports, err := s.listPorts(ctx, region, sub)
	if err != nil {
		return nil, err
	}
	entry.Ports = ports

	raw, err := json.Marshal(&entry)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return raw, nil
}

func (s *SQLStore) listPorts(ctx context.Context, region, sub string) ([]frame.Port, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, label, status, fiber_type, connector_type, destination,
			otdr_distance, otdr_distance_value, last_maintained, branching_joint,
			cx_location, notes, custom_fields
		FROM ports
		WHERE region=$1 AND sub=$2
		ORDER BY position ASC
	`, region, sub)
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	defer rows.Close()

	ports := make([]frame.Port, 0)
	for rows.Next() {
		var port frame.Port
		var customJSON string
		if err := rows.Scan(
			&port.ID,
			&port.Label,
			&port.Status,
			&port.FiberType,
			&port.ConnectorType,
			&port.Destination,
			&port.OTDRDistance,
			&port.OTDRDistanceValue,
			&port.LastMaintained,
			&port.BranchingJoint,
			&port.CxLocation,
			&port.Notes,
			&customJSON,
		); err != nil {
			return nil, fmt.Errorf("scan port: %w", err)
		}
		if err := json.Unmarshal([]byte(customJSON), &port.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
		ports = append(ports, port)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ports: %w", err)
	}
	return ports, nil
}

func (s *SQLStore) PutEntry(ctx context.Context, region, sub string, entry *frame.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertEntry(ctx, tx, region, sub, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put tx: %w", err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, region, sub string, entry *frame.Entry) error {
	defsJSON, extraJSON, err := encodeFrameColumns(entry)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO frames (region, sub, display_count, extra_field_defs, extra_json, last_save)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (region, sub) DO UPDATE SET
			display_count=EXCLUDED.display_count,
			extra_field_defs=EXCLUDED.extra_field_defs,
			extra_json=EXCLUDED.extra_json,
			last_save=EXCLUDED.last_save
	`, region, sub, entry.DisplayCount, defsJSON, extraJSON, entry.LastSave); err != nil {
		return fmt.Errorf("upsert frame: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ports WHERE region=$1 AND sub=$2`, region, sub); err != nil {
		return fmt.Errorf("clear ports: %w", err)
	}
	return insertPorts(ctx, tx, region, sub, entry.Ports)
}

func insertPorts(ctx context.Context, tx *sql.Tx, region, sub string, ports []frame.Port) error {
	for _, port := range ports {
		customJSON, err := json.Marshal(port.CustomFields)
		if err != nil {
			return fmt.Errorf("encode custom fields: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ports (region, sub, position, label, status, fiber_type, connector_type,
				destination, otdr_distance, otdr_distance_value, last_maintained,
				branching_joint, cx_location, notes, custom_fields)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, region, sub, port.ID, port.Label, port.Status, port.FiberType, port.ConnectorType,
			port.Destination, port.OTDRDistance, port.OTDRDistanceValue, port.LastMaintained,
			port.BranchingJoint, port.CxLocation, port.Notes, string(customJSON)); err != nil {
			return fmt.Errorf("insert port %d: %w", port.ID, err)
		}
	}
	return nil
}

func encodeFrameColumns(entry *frame.Entry) (defsJSON, extraJSON string, err error) {
	defs := entry.ExtraFieldDefs
	if defs == nil {
		defs = []string{}
	}
	encodedDefs, err := json.Marshal(defs)
	if err != nil {
		return "", "", fmt.Errorf("encode field defs: %w", err)
	}
	extra := entry.Extra
	if extra == nil {
		extra = map[string]json.RawMessage{}
	}
	encodedExtra, err := json.Marshal(extra)
	if err != nil {
		return "", "", fmt.Errorf("encode extra fields: %w", err)
	}
	return string(encodedDefs), string(encodedExtra), nil
}

func (s *SQLStore) DeleteEntry(ctx context.Context, region, sub string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM frames WHERE region=$1 AND sub=$2`, region, sub)
	if err != nil {
		return false, fmt.Errorf("delete frame: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete frame rows: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) ListEntries(ctx context.Context) ([]StoredEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, sub FROM frames ORDER BY region ASC, sub ASC`)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	keys := make([][2]string, 0)
	for rows.Next() {
		var region, sub string
		if err := rows.Scan(&region, &sub); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan frame key: %w", err)
		}
		keys = append(keys, [2]string{region, sub})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate frame keys: %w", err)
	}
	rows.Close()

	entries := make([]StoredEntry, 0, len(keys))
	for _, key := range keys {
		raw, err := s.GetEntry(ctx, key[0], key[1])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, StoredEntry{Region: key[0], Sub: key[1], Raw: raw})
	}
	return entries, nil
}

func (s *SQLStore) ListRegions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region FROM frames
		UNION
		SELECT region FROM rosters
		ORDER BY region ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	regions := make([]string, 0)
	for rows.Next() {
		var region string
		if err := rows.Scan(&region); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	return regions, nil
}

func (s *SQLStore) ListSubregions(ctx context.Context, region string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sub FROM rosters
		WHERE region=$1
		ORDER BY sort_order ASC, sub ASC
	`, region)
	if err != nil {
		return nil, fmt.Errorf("list subregions: %w", err)
	}
	defer rows.Close()

	subs := make([]string, 0)
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, fmt.Errorf("scan subregion: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subregions: %w", err)
	}
	return subs, nil
}

// ReplaceRoster applies the full reconciliation as one transaction:
// membership replace, cascade deletion of removed entries, and idempotent
// creation of defaults for added subs. ON CONFLICT DO NOTHING on the frame
// row keeps re-adds from clobbering live entries.
func (s *SQLStore) ReplaceRoster(ctx context.Context, region string, subs, removed []string, created []*frame.Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin roster tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rosters WHERE region=$1`, region); err != nil {
		return 0, fmt.Errorf("clear roster: %w", err)
	}
	for order, sub := range subs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rosters (region, sub, sort_order) VALUES ($1, $2, $3)
		`, region, sub, order); err != nil {
			return 0, fmt.Errorf("insert roster row: %w", err)
		}
	}

	for _, sub := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE region=$1 AND sub=$2`, region, sub); err != nil {
			return 0, fmt.Errorf("delete removed frame: %w", err)
		}
	}

	createdCount := 0
	for _, entry := range created {
		defsJSON, extraJSON, err := encodeFrameColumns(entry)
		if err != nil {
			return 0, err
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO frames (region, sub, display_count, extra_field_defs, extra_json, last_save)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (region, sub) DO NOTHING
		`, entry.Region, entry.Sub, entry.DisplayCount, defsJSON, extraJSON, entry.LastSave)
		if err != nil {
			return 0, fmt.Errorf("insert default frame: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert default frame rows: %w", err)
		}
		if affected == 0 {
			continue
		}
		if err := insertPorts(ctx, tx, entry.Region, entry.Sub, entry.Ports); err != nil {
			return 0, err
		}
		createdCount++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit roster tx: %w", err)
	}
	return createdCount, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
