package credstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is the fully-qualified table used by PostgresStore.
const DefaultTable = "tggate.session_credentials"

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// PostgresStore keeps the credential in a single-row table.
//
// The app owns the pool lifecycle; PostgresStore never closes it.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a Postgres-backed credential store.
// An empty table selects DefaultTable.
func NewPostgresStore(pool *pgxpool.Pool, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("credstore: nil db pool")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("credstore: invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the credential table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if schema, _, ok := splitTable(s.table); ok {
		if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schema); err != nil {
			return &Error{Op: "migrate", Path: s.table, Err: err}
		}
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			id         smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			credential text        NOT NULL,
			updated_at timestamptz NOT NULL
		)
	`)
	if err != nil {
		return &Error{Op: "migrate", Path: s.table, Err: err}
	}
	return nil
}

// Load returns the stored credential or "" when the row does not exist.
func (s *PostgresStore) Load(ctx context.Context) (string, error) {
	var credential string
	err := s.pool.QueryRow(ctx, `SELECT credential FROM `+s.table+` WHERE id = 1`).Scan(&credential)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &Error{Op: "read", Path: s.table, Err: err}
	}
	return credential, nil
}

// Save upserts the credential row.
func (s *PostgresStore) Save(ctx context.Context, credential string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (id, credential, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET credential = EXCLUDED.credential, updated_at = EXCLUDED.updated_at
	`, credential, time.Now().UTC())
	if err != nil {
		return &Error{Op: "write", Path: s.table, Err: err}
	}
	return nil
}

func splitTable(table string) (schema, name string, ok bool) {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return table[:i], table[i+1:], true
		}
	}
	return "", table, false
}

var _ Store = (*PostgresStore)(nil)
