package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/port"
)

var _ port.InventoryStore = (*SQLStore)(nil)

const partColumns = `id, serial_number, part_type, aircraft_type, owner, state, created_at, consumed_by, consumed_at`

const aircraftColumns = `id, serial_number, aircraft_type, owner, created_at`

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore persists parts and aircraft in a relational database. Assembly
// commits run in one transaction that flips every claimed part with a
// conditional UPDATE; a single missed row rolls the whole batch back.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore connects, pings and migrates a store for the named dialect.
func OpenSQLStore(ctx context.Context, dialectName, dsn string, opts PoolOptions) (*SQLStore, error) {
	d, err := DialectFor(dialectName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.singleWriter {
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	s := NewSQLStore(db, d)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) q(query string) string { return s.dialect.Rebind(query) }

func (s *SQLStore) CreatePart(ctx context.Context, part domain.Part) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO parts (`+partColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		part.ID, part.SerialNumber, string(part.Type), string(part.AircraftType), part.Owner,
		string(part.State), part.CreatedAt.UnixNano(), nullString(part.ConsumedBy), nullTime(part.ConsumedAt),
	)
	if s.dialect.uniqueViolation(err) {
		return domain.ErrDuplicateSerial
	}
	if err != nil {
		return fmt.Errorf("insert part: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPart(ctx context.Context, id string) (domain.Part, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+partColumns+` FROM parts WHERE id = ?`), id)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Part{}, domain.NotFound("part", id)
	}
	if err != nil {
		return domain.Part{}, fmt.Errorf("query part: %w", err)
	}
	return p, nil
}

func (s *SQLStore) ListAvailable(ctx context.Context, aircraftType domain.AircraftType, partType domain.PartType) ([]domain.Part, error) {
	query := `SELECT ` + partColumns + ` FROM parts WHERE aircraft_type = ? AND state = ?`
	args := []any{string(aircraftType), string(domain.PartStateAvailable)}
	if partType != "" {
		query += ` AND part_type = ?`
		args = append(args, string(partType))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return s.queryParts(ctx, query, args...)
}

func (s *SQLStore) ListParts(ctx context.Context, filter domain.PartFilter, page domain.PageRequest) (domain.Page[domain.Part], error) {
	page = page.Normalize()

	var where []string
	var args []any
	if filter.Type != "" {
		where = append(where, "part_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.AircraftType != "" {
		where = append(where, "aircraft_type = ?")
		args = append(args, string(filter.AircraftType))
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	where, args = appendTimeRange(where, args, filter.Created)
	clause := whereClause(where)

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM parts`+clause), args...).Scan(&total); err != nil {
		return domain.Page[domain.Part]{}, fmt.Errorf("count parts: %w", err)
	}

	query := `SELECT ` + partColumns + ` FROM parts` + clause + orderClause(page.Descending) + ` LIMIT ? OFFSET ?`
	items, err := s.queryParts(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return domain.Page[domain.Part]{}, err
	}
	if items == nil {
		items = []domain.Part{}
	}
	return domain.Page[domain.Part]{Items: items, Total: total}, nil
}

func (s *SQLStore) CountParts(ctx context.Context, aircraftType domain.AircraftType) (map[domain.PartType]domain.StockCount, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT part_type, state, COUNT(*)
		FROM parts WHERE aircraft_type = ?
		GROUP BY part_type, state`), string(aircraftType))
	if err != nil {
		return nil, fmt.Errorf("count parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.PartType]domain.StockCount)
	for rows.Next() {
		var partType, state string
		var n int
		if err := rows.Scan(&partType, &state, &n); err != nil {
			return nil, fmt.Errorf("scan part count: %w", err)
		}
		c := counts[domain.PartType(partType)]
		c.Total += n
		if domain.PartState(state) == domain.PartStateAvailable {
			c.Available += n
		} else {
			c.Used += n
		}
		counts[domain.PartType(partType)] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate part counts: %w", err)
	}
	return counts, nil
}

func (s *SQLStore) DeleteAvailablePart(ctx context.Context, id string) (domain.Part, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Part{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.q(`SELECT `+partColumns+` FROM parts WHERE id = ?`+s.dialect.lockSuffix), id)
	p, err := scanPart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Part{}, domain.NotFound("part", id)
	}
	if err != nil {
		return domain.Part{}, fmt.Errorf("query part: %w", err)
	}
	if !p.Available() {
		return domain.Part{}, domain.AlreadyConsumed(id)
	}

	result, err := tx.ExecContext(ctx, s.q(`DELETE FROM parts WHERE id = ? AND state = ?`), id, string(domain.PartStateAvailable))
	if err != nil {
		return domain.Part{}, fmt.Errorf("delete part: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Part{}, fmt.Errorf("delete part: %w", err)
	}
	if rows == 0 {
		return domain.Part{}, domain.AlreadyConsumed(id)
	}

	if err := tx.Commit(); err != nil {
		return domain.Part{}, fmt.Errorf("commit delete part: %w", err)
	}
	return p, nil
}

func (s *SQLStore) GetAircraft(ctx context.Context, id string) (domain.Aircraft, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+aircraftColumns+` FROM aircraft WHERE id = ?`), id)
	a, err := scanAircraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Aircraft{}, domain.NotFound("aircraft", id)
	}
	if err != nil {
		return domain.Aircraft{}, fmt.Errorf("query aircraft: %w", err)
	}

	used, err := s.loadUsedParts(ctx, []string{id})
	if err != nil {
		return domain.Aircraft{}, err
	}
	a.UsedParts = used[id]
	return a, nil
}

func (s *SQLStore) ListAircraft(ctx context.Context, filter domain.AircraftFilter, page domain.PageRequest) (domain.Page[domain.Aircraft], error) {
	page = page.Normalize()

	var where []string
	var args []any
	if filter.AircraftType != "" {
		where = append(where, "aircraft_type = ?")
		args = append(args, string(filter.AircraftType))
	}
	if filter.SerialNumber != "" {
		where = append(where, "UPPER(serial_number) LIKE ?")
		args = append(args, "%"+strings.ToUpper(filter.SerialNumber)+"%")
	}
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	where, args = appendTimeRange(where, args, filter.Created)
	clause := whereClause(where)

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM aircraft`+clause), args...).Scan(&total); err != nil {
		return domain.Page[domain.Aircraft]{}, fmt.Errorf("count aircraft: %w", err)
	}

	query := `SELECT ` + aircraftColumns + ` FROM aircraft` + clause + orderClause(page.Descending) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.q(query), append(args, page.Limit, page.Offset)...)
	if err != nil {
		return domain.Page[domain.Aircraft]{}, fmt.Errorf("query aircraft: %w", err)
	}
	items := []domain.Aircraft{}
	for rows.Next() {
		a, err := scanAircraft(rows)
		if err != nil {
			_ = rows.Close()
			return domain.Page[domain.Aircraft]{}, fmt.Errorf("scan aircraft: %w", err)
		}
		items = append(items, a)
	}
	// Rows must be released before the next query on single-writer pools.
	if err := rows.Close(); err != nil {
		return domain.Page[domain.Aircraft]{}, fmt.Errorf("close aircraft rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Aircraft]{}, fmt.Errorf("iterate aircraft: %w", err)
	}

	if len(items) > 0 {
		ids := make([]string, len(items))
		for i, a := range items {
			ids[i] = a.ID
		}
		used, err := s.loadUsedParts(ctx, ids)
		if err != nil {
			return domain.Page[domain.Aircraft]{}, err
		}
		for i := range items {
			items[i].UsedParts = used[items[i].ID]
		}
	}
	return domain.Page[domain.Aircraft]{Items: items, Total: total}, nil
}

func (s *SQLStore) CommitAssembly(ctx context.Context, aircraft domain.Aircraft) error {
	// Once started, the commit runs to completion or full rollback.
	ctx = context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO aircraft (`+aircraftColumns+`)
		VALUES (?, ?, ?, ?, ?)`),
		aircraft.ID, aircraft.SerialNumber, string(aircraft.AircraftType), aircraft.Owner, aircraft.CreatedAt.UnixNano(),
	)
	if s.dialect.uniqueViolation(err) {
		return domain.ErrDuplicateSerial
	}
	if err != nil {
		return fmt.Errorf("insert aircraft: %w", err)
	}

	// Lock rows in id order so concurrent commits cannot deadlock.
	claims := aircraft.Claims()
	sort.Slice(claims, func(i, j int) bool { return claims[i].PartID < claims[j].PartID })
	for i, claim := range claims {
		if i > 0 && claims[i-1].PartID == claim.PartID {
			return domain.PartConflict(claim.PartID, "claimed twice")
		}
		result, err := tx.ExecContext(ctx, s.q(`
			UPDATE parts
			SET state = ?, consumed_by = ?, consumed_at = ?
			WHERE id = ? AND part_type = ? AND aircraft_type = ? AND state = ?`),
			string(domain.PartStateConsumed), aircraft.ID, aircraft.CreatedAt.UnixNano(),
			claim.PartID, string(claim.Type), string(aircraft.AircraftType), string(domain.PartStateAvailable),
		)
		if err != nil {
			return fmt.Errorf("consume part %s: %w", claim.PartID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("consume part %s: %w", claim.PartID, err)
		}
		if rows != 1 {
			return domain.PartConflict(claim.PartID, "no longer available")
		}
	}

	for i, used := range aircraft.UsedParts {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO aircraft_parts (aircraft_id, seq, part_id, part_type)
			VALUES (?, ?, ?, ?)`),
			aircraft.ID, i, used.PartID, string(used.Type),
		)
		if s.dialect.uniqueViolation(err) {
			return domain.PartConflict(used.PartID, "already linked to an aircraft")
		}
		if err != nil {
			return fmt.Errorf("link part %s: %w", used.PartID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assembly: %w", err)
	}
	return nil
}

func (s *SQLStore) queryParts(ctx context.Context, query string, args ...any) ([]domain.Part, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var parts []domain.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}
	return parts, nil
}

func (s *SQLStore) loadUsedParts(ctx context.Context, aircraftIDs []string) (map[string][]domain.UsedPart, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(aircraftIDs)), ", ")
	args := make([]any, len(aircraftIDs))
	for i, id := range aircraftIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT aircraft_id, part_id, part_type
		FROM aircraft_parts
		WHERE aircraft_id IN (`+placeholders+`)
		ORDER BY aircraft_id, seq`), args...)
	if err != nil {
		return nil, fmt.Errorf("query aircraft parts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	used := make(map[string][]domain.UsedPart, len(aircraftIDs))
	for rows.Next() {
		var aircraftID, partID, partType string
		if err := rows.Scan(&aircraftID, &partID, &partType); err != nil {
			return nil, fmt.Errorf("scan aircraft part: %w", err)
		}
		used[aircraftID] = append(used[aircraftID], domain.UsedPart{PartID: partID, Type: domain.PartType(partType)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aircraft parts: %w", err)
	}
	return used, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPart(row rowScanner) (domain.Part, error) {
	var (
		p                      domain.Part
		partType, aircraftType string
		state                  string
		createdAt              int64
		consumedBy             sql.NullString
		consumedAt             sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.SerialNumber, &partType, &aircraftType, &p.Owner, &state, &createdAt, &consumedBy, &consumedAt); err != nil {
		return domain.Part{}, err
	}
	p.Type = domain.PartType(partType)
	p.AircraftType = domain.AircraftType(aircraftType)
	p.State = domain.PartState(state)
	p.CreatedAt = fromNanos(createdAt)
	if consumedBy.Valid {
		p.ConsumedBy = consumedBy.String
	}
	if consumedAt.Valid {
		p.ConsumedAt = fromNanos(consumedAt.Int64)
	}
	return p, nil
}

func scanAircraft(row rowScanner) (domain.Aircraft, error) {
	var (
		a            domain.Aircraft
		aircraftType string
		createdAt    int64
	)
	if err := row.Scan(&a.ID, &a.SerialNumber, &aircraftType, &a.Owner, &createdAt); err != nil {
		return domain.Aircraft{}, err
	}
	a.AircraftType = domain.AircraftType(aircraftType)
	a.CreatedAt = fromNanos(createdAt)
	return a, nil
}

func appendTimeRange(where []string, args []any, r domain.TimeRange) ([]string, []any) {
	if !r.After.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, r.After.UnixNano())
	}
	if !r.Before.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, r.Before.UnixNano())
	}
	return where, args
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func orderClause(descending bool) string {
	if descending {
		return " ORDER BY created_at DESC, id DESC"
	}
	return " ORDER BY created_at ASC, id ASC"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
