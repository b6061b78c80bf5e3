package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name       string
	driverName string
	// lockSuffix is appended to SELECTs that must lock the row inside a tx.
	lockSuffix      string
	dollarBinds     bool
	singleWriter    bool
	schema          []string
	uniqueViolation func(error) bool
}

var MySQLDialect = Dialect{
	Name:            DriverMySQL,
	driverName:      "mysql",
	lockSuffix:      " FOR UPDATE",
	schema:          mysqlSchema,
	uniqueViolation: mysqlUniqueViolation,
}

var PostgresDialect = Dialect{
	Name:            DriverPostgres,
	driverName:      "pgx",
	lockSuffix:      " FOR UPDATE",
	dollarBinds:     true,
	schema:          portableSchema,
	uniqueViolation: postgresUniqueViolation,
}

// SQLiteDialect serialises writers; SQLite has no row locks.
var SQLiteDialect = Dialect{
	Name:            DriverSQLite,
	driverName:      "sqlite",
	singleWriter:    true,
	schema:          portableSchema,
	uniqueViolation: sqliteUniqueViolation,
}

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case DriverMySQL:
		return MySQLDialect, nil
	case DriverPostgres, "postgresql", "pgx":
		return PostgresDialect, nil
	case DriverSQLite, "sqlite3":
		return SQLiteDialect, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
}

// Rebind rewrites '?' placeholders for dialects using $n binds.
func (d Dialect) Rebind(query string) string {
	if !d.dollarBinds {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mysqlUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func postgresUniqueViolation(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == "23505"
}

func sqliteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS parts (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		serial_number VARCHAR(64) NOT NULL,
		part_type VARCHAR(32) NOT NULL,
		aircraft_type VARCHAR(64) NOT NULL,
		owner VARCHAR(128) NOT NULL,
		state VARCHAR(16) NOT NULL,
		created_at BIGINT NOT NULL,
		consumed_by VARCHAR(64) NULL,
		consumed_at BIGINT NULL,
		UNIQUE KEY uq_parts_serial (serial_number),
		INDEX idx_parts_stock (aircraft_type, state, part_type, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS aircraft (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		serial_number VARCHAR(64) NOT NULL,
		aircraft_type VARCHAR(64) NOT NULL,
		owner VARCHAR(128) NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE KEY uq_aircraft_serial (serial_number),
		INDEX idx_aircraft_created (aircraft_type, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS aircraft_parts (
		aircraft_id VARCHAR(64) NOT NULL,
		seq INT NOT NULL,
		part_id VARCHAR(64) NOT NULL,
		part_type VARCHAR(32) NOT NULL,
		PRIMARY KEY (aircraft_id, seq),
		UNIQUE KEY uq_aircraft_parts_part (part_id)
	)`,
}

var portableSchema = []string{
	`CREATE TABLE IF NOT EXISTS parts (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		serial_number VARCHAR(64) NOT NULL UNIQUE,
		part_type VARCHAR(32) NOT NULL,
		aircraft_type VARCHAR(64) NOT NULL,
		owner VARCHAR(128) NOT NULL,
		state VARCHAR(16) NOT NULL,
		created_at BIGINT NOT NULL,
		consumed_by VARCHAR(64) NULL,
		consumed_at BIGINT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_parts_stock ON parts (aircraft_type, state, part_type, created_at)`,
	`CREATE TABLE IF NOT EXISTS aircraft (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		serial_number VARCHAR(64) NOT NULL UNIQUE,
		aircraft_type VARCHAR(64) NOT NULL,
		owner VARCHAR(128) NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_aircraft_created ON aircraft (aircraft_type, created_at)`,
	`CREATE TABLE IF NOT EXISTS aircraft_parts (
		aircraft_id VARCHAR(64) NOT NULL,
		seq INTEGER NOT NULL,
		part_id VARCHAR(64) NOT NULL UNIQUE,
		part_type VARCHAR(32) NOT NULL,
		PRIMARY KEY (aircraft_id, seq)
	)`,
}
