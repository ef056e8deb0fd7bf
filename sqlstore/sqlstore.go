/*
	Package sqlstore implements the segment, nodes and classification stores on a
	relational database through database/sql.

	Two drivers are supported: "sqlite" (modernc.org/sqlite, pure Go) for local
	deployments and tests, and "postgres" (github.com/lib/pq).  Queries are written
	with ? placeholders and rebound for PostgreSQL.  The relation and class name maps
	of each project change rarely and are cached for NameTTL.
*/
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/lib/pq"
	cache "github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultNameTTL is how long relation and class name maps are cached.
	DefaultNameTTL = 5 * time.Minute
)

// Config selects the database.
type Config struct {
	Driver  string
	DSN     string
	NameTTL time.Duration
}

// DB is a relational store.
type DB struct {
	db     *sql.DB
	driver string
	names  *cache.Cache
}

// Open connects to the database and creates any missing tables.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	var schema string
	switch cfg.Driver {
	case DriverSQLite, "":
		cfg.Driver, schema = DriverSQLite, sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("no database DSN given for driver %s", cfg.Driver)
	}
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, catvol.StoreErr("open database", err)
	}
	if cfg.Driver == DriverSQLite {
		// A single connection serializes writers and keeps :memory: databases shared.
		sqldb.SetMaxOpenConns(1)
	}
	if _, err := sqldb.ExecContext(ctx, schema); err != nil {
		sqldb.Close()
		return nil, catvol.StoreErr("create schema", err)
	}
	ttl := cfg.NameTTL
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	catvol.Infof("Opened %s database\n", cfg.Driver)
	return &DB{
		db:     sqldb,
		driver: cfg.Driver,
		names:  cache.New(ttl, 2*ttl),
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// FlushNames drops the cached relation and class name maps.
func (d *DB) FlushNames() {
	d.names.Flush()
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
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

// in returns a membership condition on column for the ids and its arguments.
func (d *DB) in(column string, ids []int64) (string, []interface{}) {
	if d.driver == DriverPostgres {
		return column + " = ANY(?)", []interface{}{pq.Array(ids)}
	}
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return column + " IN (" + strings.Join(marks, ", ") + ")", args
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (d *DB) query(ctx context.Context, q querier, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, catvol.StoreErr("query", err)
	}
	return rows, nil
}

func (d *DB) exec(ctx context.Context, q querier, query string, args ...interface{}) (sql.Result, error) {
	res, err := q.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, catvol.StoreErr("exec", err)
	}
	return res, nil
}

// insert runs an INSERT ... RETURNING id statement.
func (d *DB) insert(ctx context.Context, q querier, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, d.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, catvol.StoreErr("insert", err)
	}
	return id, nil
}

// nameMap returns a cached name to id map read from table for a project.
func (d *DB) nameMap(ctx context.Context, table, column string, projectID int64) (map[string]int64, error) {
	key := fmt.Sprintf("%s/%d", table, projectID)
	if m, found := d.names.Get(key); found {
		return m.(map[string]int64), nil
	}
	rows, err := d.query(ctx, d.db, "SELECT id, "+column+" FROM "+table+" WHERE project_id = ?", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	m := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, catvol.StoreErr("scan "+table, err)
		}
		m[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, catvol.StoreErr("scan "+table, err)
	}
	d.names.Set(key, m, cache.DefaultExpiration)
	return m, nil
}

func nullable(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func pointer(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
