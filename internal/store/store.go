package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/liveledger/internal/fanout"
	"github.com/roach88/liveledger/internal/match"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial matches/match_events schema
const currentSchemaVersion = 1

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Relay forwards committed changes to other store replicas.
type Relay interface {
	Publish(ctx context.Context, ch match.Change) error
}

// Store is the authoritative record of matches and their ledgers.
type Store struct {
	db      *sql.DB
	dialect dialect
	origin  string
	relay   Relay
	clock   match.Clock
	ids     match.IDGenerator

	// pubMu orders change delivery against subscription snapshots: a
	// subscriber registered under pubMu never sees a change older than its
	// initial snapshot.
	pubMu      sync.Mutex
	matchFeed  *fanout.Broker[*match.LiveMatch]
	eventFeed  *fanout.Broker[match.Event]
	activeFeed *fanout.Broker[[]match.LiveMatch]
}

// Option configures a Store.
type Option func(*Store)

// WithRelay publishes every locally committed change to r.
func WithRelay(r Relay) Option {
	return func(s *Store) { s.relay = r }
}

// WithOrigin sets the id stamped on locally committed changes.
// Default: a fresh UUIDv7.
func WithOrigin(origin string) Option {
	return func(s *Store) { s.origin = origin }
}

// WithClock sets the clock used for server-side audit stamps.
func WithClock(c match.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the generator used when a created match has no id.
func WithIDGenerator(g match.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return newStore(db, dialectSQLite, opts)
}

// OpenPostgres connects to a Postgres database and applies the schema.
func OpenPostgres(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)

	return newStore(db, dialectPostgres, opts)
}

func newStore(db *sql.DB, d dialect, opts []Option) (*Store, error) {
	if err := applySchema(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:         db,
		dialect:    d,
		clock:      match.SystemClock{},
		ids:        match.UUIDv7Generator{},
		matchFeed:  fanout.NewBroker[*match.LiveMatch]("matches", 0),
		eventFeed:  fanout.NewBroker[match.Event]("events", 0, fanout.CloseSlow()),
		activeFeed: fanout.NewBroker[[]match.LiveMatch]("active", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.origin == "" {
		s.origin = uuid.Must(uuid.NewV7()).String()
	}
	return s, nil
}

// Close closes every subscription and the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.matchFeed.Close()
	s.eventFeed.Close()
	s.activeFeed.Close()
	return s.db.Close()
}

// Origin returns the id stamped on changes committed by this store.
func (s *Store) Origin() string {
	return s.origin
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
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

// forUpdate is appended to row reads inside write transactions.
// SQLite already serializes writers.
func (s *Store) forUpdate() string {
	if s.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. This function is idempotent.
func applySchema(db *sql.DB, d dialect) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_meta").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		q := "INSERT INTO schema_meta (version) VALUES (?)"
		if d == dialectPostgres {
			q = "INSERT INTO schema_meta (version) VALUES ($1)"
		}
		if _, err := db.Exec(q, currentSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("get schema version: %w", err)
	case version > currentSchemaVersion:
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
