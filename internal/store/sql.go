package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/store/migrations"
)

// DefaultMaxAttempts bounds how often Update retries after losing a version race
const DefaultMaxAttempts = 8

var tracer = otel.Tracer("github.com/aaronzipp/scavenger-hunt/internal/store")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for postgres
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore keeps one JSON document per game with a version column used as
// an optimistic concurrency token.
type SQLStore struct {
	db          *sql.DB
	dialect     dialect
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// Open opens a store of the given kind: "sqlite", "postgres" or "memory"
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	var (
		s   *SQLStore
		err error
	)
	switch kind {
	case "sqlite", "":
		s, err = OpenSQLite(ctx, dsn)
	case "postgres":
		s, err = OpenPostgres(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database type %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens a SQLite store at path
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	s, err := openSQL(ctx, "sqlite", dsn, dialectSQLite)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// OpenPostgres opens a PostgreSQL store using a lib/pq connection string
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	return openSQL(ctx, "postgres", dsn, dialectPostgres)
}

func openSQL(ctx context.Context, driver, dsn string, d dialect) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	if err := applyMigrations(ctx, db, d, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLStore{
		db:          db,
		dialect:     d,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		logger:      slog.Default(),
	}, nil
}

// WithLogger sets the logger used for retry diagnostics
func (s *SQLStore) WithLogger(logger *slog.Logger) *SQLStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new game at version 1
func (s *SQLStore) Create(ctx context.Context, g models.Game) (Snapshot, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g = g.Clone()
	data, err := json.Marshal(g)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode game: %w", err)
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	var found int
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT 1 FROM games WHERE id = ?`), g.ID).Scan(&found)
	if err == nil {
		return Snapshot{}, ErrExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("check game: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO games (id, name, data, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`),
		g.ID, g.Name, string(data), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Game: g, Version: 1, UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC()}, nil
}

// Get loads the latest version of a game
func (s *SQLStore) Get(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT data, version, updated_at FROM games WHERE id = ?`), id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

// Update reads the latest version, applies fn and writes the result only if
// no other writer bumped the version in between. Lost races are retried.
func (s *SQLStore) Update(ctx context.Context, id string, fn Mutator) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "store.Update")
	defer span.End()
	span.SetAttributes(attribute.String("game.id", id))

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.Get(ctx, id)
		if err != nil {
			span.RecordError(err)
			return Snapshot{}, err
		}

		next, err := fn(current.Game.Clone())
		if err != nil {
			return current, err
		}
		next.ID = id

		data, err := json.Marshal(next)
		if err != nil {
			return Snapshot{}, fmt.Errorf("encode game: %w", err)
		}
		now := s.now().UTC()
		res, err := s.db.ExecContext(ctx,
			s.dialect.rebind(`UPDATE games SET name = ?, data = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`),
			next.Name, string(data), now.UnixMilli(), id, current.Version,
		)
		if err != nil {
			span.RecordError(err)
			return Snapshot{}, fmt.Errorf("update game: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Snapshot{}, fmt.Errorf("update game: %w", err)
		}
		if n == 1 {
			span.SetAttributes(attribute.Int("store.attempts", attempt))
			return Snapshot{
				Game:      next,
				Version:   current.Version + 1,
				UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
			}, nil
		}
		s.logger.Debug("game version moved, retrying", "game_id", id, "version", current.Version, "attempt", attempt)
	}

	span.SetStatus(codes.Error, ErrConflict.Error())
	return Snapshot{}, fmt.Errorf("%w: gave up after %d attempts", ErrConflict, s.maxAttempts)
}

// List returns all games, most recently updated first
func (s *SQLStore) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data, version, updated_at FROM games ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var (
		data      string
		version   int64
		updatedAt int64
	)
	if err := row.Scan(&data, &version, &updatedAt); err != nil {
		return Snapshot{}, err
	}
	var g models.Game
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return Snapshot{}, fmt.Errorf("decode game: %w", err)
	}
	return Snapshot{Game: g.Clone(), Version: version, UpdatedAt: time.UnixMilli(updatedAt).UTC()}, nil
}
