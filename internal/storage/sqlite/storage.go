package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
	"github.com/mcoot/puzzlegame/internal/storage/sqlite/migrations"
)

var sessionColumns = []string{"id", "owner", "puzzle_ref", "state", "started_at", "completed_at"}

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// Open opens the database file at path and applies bundled migrations
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Storage{db: db}, nil
}

// Migrate applies pending schema migrations to db
func Migrate(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migrate driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.PuzzleSession, error) {
	var (
		session     model.PuzzleSession
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	err := row.Scan(&session.ID, &session.Owner, &session.PuzzleRef, &session.State, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, unavailable(err)
	}
	session.StartedAt = timeFromNull(startedAt)
	session.CompletedAt = timeFromNull(completedAt)
	return &session, nil
}

// Session operations

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	query, args, err := sq.Select(sessionColumns...).
		From("puzzle_sessions").
		Where(sq.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Storage) FindActiveSession(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.PuzzleSession, error) {
	query, args, err := sq.Select(sessionColumns...).
		From("puzzle_sessions").
		Where(sq.Eq{"owner": string(owner), "puzzle_ref": string(ref)}).
		Where(sq.NotEq{"state": string(model.SessionStateCompleted)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active session query: %w", err)
	}
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

func (s *Storage) CreateSession(ctx context.Context, session *model.PuzzleSession) (*model.PuzzleSession, error) {
	query, args, err := sq.Insert("puzzle_sessions").
		Columns(sessionColumns...).
		Values(
			string(session.ID),
			string(session.Owner),
			string(session.PuzzleRef),
			string(session.State),
			nullMillis(session.StartedAt),
			nullMillis(session.CompletedAt),
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isConstraintError(err) {
			return nil, model.ErrConflict
		}
		return nil, unavailable(err)
	}
	return session.Clone(), nil
}

func (s *Storage) CompareAndSetSession(ctx context.Context, id model.SessionID, expected model.SessionState, update model.SessionUpdate) (*model.PuzzleSession, error) {
	builder := sq.Update("puzzle_sessions").
		Set("state", string(update.State)).
		Where(sq.Eq{"id": string(id), "state": string(expected)}).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", "))
	if update.CompletedAt != nil {
		builder = builder.Set("completed_at", toMillis(*update.CompletedAt))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session update: %w", err)
	}

	updated, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, model.ErrSessionNotFound) {
		// No row matched: either the id is unknown or the state moved on
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrStaleState
	}
	return updated, err
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	query, args, err := sq.Insert("players").
		Columns("id", "display_name", "is_guest", "created_at").
		Values(string(player.ID), player.DisplayName, player.IsGuest, toMillis(player.CreatedAt)).
		Suffix("ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, is_guest = excluded.is_guest").
		ToSql()
	if err != nil {
		return fmt.Errorf("building player insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	query, args, err := sq.Select("id", "display_name", "is_guest", "created_at").
		From("players").
		Where(sq.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building player query: %w", err)
	}

	var (
		player    model.Player
		createdAt int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&player.ID, &player.DisplayName, &player.IsGuest, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, unavailable(err)
	}
	player.CreatedAt = fromMillis(createdAt)
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	query, args, err := sq.Insert("registered_players").
		Columns("player_id", "username", "password_hash", "created_at", "updated_at").
		Values(string(rp.PlayerID), rp.Username, rp.PasswordHash, toMillis(rp.CreatedAt), toMillis(rp.UpdatedAt)).
		Suffix("ON CONFLICT(player_id) DO UPDATE SET username = excluded.username, password_hash = excluded.password_hash, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building registered player insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isConstraintError(err) {
			return model.ErrConflict
		}
		return unavailable(err)
	}
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, sq.Eq{"player_id": string(playerID)})
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, sq.Eq{"username": username})
}

func (s *Storage) getRegisteredPlayer(ctx context.Context, where sq.Eq) (*model.RegisteredPlayer, error) {
	query, args, err := sq.Select("player_id", "username", "password_hash", "created_at", "updated_at").
		From("registered_players").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building registered player query: %w", err)
	}

	var (
		rp                   model.RegisteredPlayer
		createdAt, updatedAt int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rp.PlayerID, &rp.Username, &rp.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, unavailable(err)
	}
	rp.CreatedAt = fromMillis(createdAt)
	rp.UpdatedAt = fromMillis(updatedAt)
	return &rp, nil
}
