// internal/repository/scan_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bt-discovery/internal/database"
	"bt-discovery/internal/model"
	"bt-discovery/internal/utils"
)

// scanRepository implements ScanRepository on SQLite or PostgreSQL.
// Timestamps are stored as unix milliseconds so both drivers agree.
type scanRepository struct {
	db     *database.DB
	logger *utils.ServiceLogger
}

// NewScanRepository creates a new SQL scan repository
func NewScanRepository(db *database.DB, logger *zap.Logger) ScanRepository {
	return &scanRepository{
		db:     db,
		logger: utils.NewServiceLogger(logger, "scan_repository"),
	}
}

// rebind rewrites ? placeholders to $n for postgres
func (r *scanRepository) rebind(query string) string {
	if r.db.Driver != database.DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *scanRepository) exec(ctx context.Context, q execer, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := q.ExecContext(ctx, r.rebind(query), args...)
	r.logger.LogDatabaseQuery(query, time.Since(start), err)
	return res, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Save stores a scan and its sightings in one transaction
func (r *scanRepository) Save(ctx context.Context, scan *model.ScanRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = r.exec(ctx, tx, `
		INSERT INTO scans (
			id, scan_type, backend, outcome, diagnostic,
			started_at, finished_at, device_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scan.ID.String(), scan.ScanType, scan.Backend, string(scan.Outcome), scan.Diagnostic,
		toMillis(scan.StartedAt), toMillis(scan.FinishedAt), len(scan.Sightings),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	for i, sg := range scan.Sightings {
		_, err = r.exec(ctx, tx, `
			INSERT INTO scan_devices (
				scan_id, position, source, address, com_port_name, bt_friendly_name,
				interface_type, interface_index, machine_type
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scan.ID.String(), i, sg.Source, sg.Address, sg.Device.ComPortName, sg.Device.BTFriendlyName,
			int(sg.Device.InterfaceType), sg.Device.InterfaceIndex, int(sg.Device.MachineType),
		)
		if err != nil {
			return fmt.Errorf("failed to save scan device %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}

	r.logger.Debug("Scan saved",
		zap.String("scan_id", scan.ID.String()),
		zap.Int("devices", len(scan.Sightings)),
	)
	return nil
}

const scanColumns = `id, scan_type, backend, outcome, diagnostic, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*model.ScanRecord, error) {
	var (
		id                string
		outcome           string
		started, finished int64
		scan              model.ScanRecord
	)
	if err := row.Scan(&id, &scan.ScanType, &scan.Backend, &outcome, &scan.Diagnostic, &started, &finished); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid scan id %q: %w", id, err)
	}
	scan.ID = parsed
	scan.Outcome = model.Outcome(outcome)
	scan.StartedAt = fromMillis(started)
	scan.FinishedAt = fromMillis(finished)
	scan.Sightings = []model.Sighting{}
	return &scan, nil
}

// Get retrieves a scan with its sightings
func (r *scanRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE id = ?`

	scan, err := scanRow(r.db.QueryRowContext(ctx, r.rebind(query), id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r.logger.Error("Failed to get scan", zap.Error(err), zap.String("scan_id", id.String()))
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	if err := r.loadSightings(ctx, scan); err != nil {
		return nil, err
	}
	return scan, nil
}

func (r *scanRepository) loadSightings(ctx context.Context, scan *model.ScanRecord) error {
	query := `
		SELECT source, address, com_port_name, bt_friendly_name,
		       interface_type, interface_index, machine_type
		FROM scan_devices WHERE scan_id = ? ORDER BY position`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), scan.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load scan devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sg           model.Sighting
			iface, mtype int
		)
		if err := rows.Scan(&sg.Source, &sg.Address, &sg.Device.ComPortName, &sg.Device.BTFriendlyName,
			&iface, &sg.Device.InterfaceIndex, &mtype); err != nil {
			return fmt.Errorf("failed to scan device row: %w", err)
		}
		sg.Device.InterfaceType = model.InterfaceType(iface)
		sg.Device.MachineType = model.MachineType(mtype)
		scan.Sightings = append(scan.Sightings, sg)
	}
	return rows.Err()
}

// List returns scans newest first, with the total count before paging
func (r *scanRepository) List(ctx context.Context, filter *ScanFilter) ([]*model.ScanRecord, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter != nil {
		if filter.ScanType != "" {
			conditions = append(conditions, "scan_type = ?")
			args = append(args, filter.ScanType)
		}
		if filter.Outcome != "" {
			conditions = append(conditions, "outcome = ?")
			args = append(args, string(filter.Outcome))
		}
		if filter.Since != nil {
			conditions = append(conditions, "started_at >= ?")
			args = append(args, toMillis(*filter.Since))
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM scans` + where
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count scans", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count scans: %w", err)
	}

	query := `SELECT ` + scanColumns + ` FROM scans` + where + ` ORDER BY started_at DESC`
	if filter != nil && filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list scans", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list scans: %w", err)
	}

	scans := []*model.ScanRecord{}
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to iterate scans: %w", err)
	}

	for _, scan := range scans {
		if err := r.loadSightings(ctx, scan); err != nil {
			return nil, 0, err
		}
	}
	return scans, total, nil
}

// DeleteOlderThan removes scans started before the given time
func (r *scanRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := toMillis(before)
	if _, err := r.exec(ctx, tx,
		`DELETE FROM scan_devices WHERE scan_id IN (SELECT id FROM scans WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete old scan devices: %w", err)
	}

	res, err := r.exec(ctx, tx, `DELETE FROM scans WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old scans: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		r.logger.Info("Old scans deleted", zap.Int64("count", deleted), zap.Time("before", before))
	}
	return deleted, nil
}
