// Package postgres provides PostgreSQL storage for puzzle sessions and players.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
	"github.com/mcoot/puzzlegame/internal/storage/postgres/migrations"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sessionColumns = []string{"id", "owner", "puzzle_ref", "state", "started_at", "completed_at"}

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Config configures the PostgreSQL store.
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Storage implements storage.Storage using PostgreSQL.
type Storage struct {
	db *sql.DB
}

// New wraps an existing database handle. Migrations are not applied.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Open connects to PostgreSQL and applies bundled migrations.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// Migrate executes all pending migrations. Already applied migrations are skipped.
func Migrate(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("getting migration version: %w", err)
	}
	if dirty {
		slog.Warn("database migration state is dirty", "version", version)
	}
	return nil
}

// Close closes the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

var _ storage.Storage = (*Storage)(nil)

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func scanSession(row interface{ Scan(dest ...any) error }) (*model.PuzzleSession, error) {
	var (
		session     model.PuzzleSession
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&session.ID, &session.Owner, &session.PuzzleRef, &session.State, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, unavailable(fmt.Errorf("scanning session: %w", err))
	}
	session.StartedAt = timeFromNull(startedAt)
	session.CompletedAt = timeFromNull(completedAt)
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("puzzle_sessions").
		Where(sq.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

// FindActiveSession returns the non-completed session for owner and ref.
func (s *Storage) FindActiveSession(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.PuzzleSession, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("puzzle_sessions").
		Where(sq.Eq{"owner": string(owner), "puzzle_ref": string(ref)}).
		Where(sq.NotEq{"state": string(model.SessionStateCompleted)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active session query: %w", err)
	}
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

// CreateSession inserts a new session. The partial unique index on
// (owner, puzzle_ref) turns a duplicate active session into ErrConflict.
func (s *Storage) CreateSession(ctx context.Context, session *model.PuzzleSession) (*model.PuzzleSession, error) {
	query, args, err := psq.Insert("puzzle_sessions").
		Columns(sessionColumns...).
		Values(
			string(session.ID),
			string(session.Owner),
			string(session.PuzzleRef),
			string(session.State),
			nullTime(session.StartedAt),
			nullTime(session.CompletedAt),
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, unavailable(fmt.Errorf("inserting session: %w", err))
	}
	return session.Clone(), nil
}

// CompareAndSetSession applies update only while the stored state equals expected.
func (s *Storage) CompareAndSetSession(ctx context.Context, id model.SessionID, expected model.SessionState, update model.SessionUpdate) (*model.PuzzleSession, error) {
	builder := psq.Update("puzzle_sessions").
		Set("state", string(update.State)).
		Where(sq.Eq{"id": string(id), "state": string(expected)}).
		Suffix("RETURNING " + strings.Join(sessionColumns, ", "))
	if update.CompletedAt != nil {
		builder = builder.Set("completed_at", update.CompletedAt.UTC())
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session update: %w", err)
	}

	updated, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, model.ErrSessionNotFound) {
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrStaleState
	}
	return updated, err
}

// SavePlayer upserts a player.
func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	query, args, err := psq.Insert("players").
		Columns("id", "display_name", "is_guest", "created_at").
		Values(string(player.ID), player.DisplayName, player.IsGuest, player.CreatedAt.UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, is_guest = EXCLUDED.is_guest").
		ToSql()
	if err != nil {
		return fmt.Errorf("building player insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(fmt.Errorf("saving player: %w", err))
	}
	return nil
}

// GetPlayer retrieves a player by ID.
func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	query, args, err := psq.Select("id", "display_name", "is_guest", "created_at").
		From("players").
		Where(sq.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building player query: %w", err)
	}

	var player model.Player
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&player.ID, &player.DisplayName, &player.IsGuest, &player.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, unavailable(fmt.Errorf("querying player: %w", err))
	}
	player.CreatedAt = player.CreatedAt.UTC()
	return &player, nil
}

// SaveRegisteredPlayer upserts login credentials for a player.
func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	query, args, err := psq.Insert("registered_players").
		Columns("player_id", "username", "password_hash", "created_at", "updated_at").
		Values(string(rp.PlayerID), rp.Username, rp.PasswordHash, rp.CreatedAt.UTC(), rp.UpdatedAt.UTC()).
		Suffix("ON CONFLICT (player_id) DO UPDATE SET username = EXCLUDED.username, password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building registered player insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return model.ErrConflict
		}
		return unavailable(fmt.Errorf("saving registered player: %w", err))
	}
	return nil
}

// GetRegisteredPlayer retrieves credentials by player ID.
func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, sq.Eq{"player_id": string(playerID)})
}

// GetRegisteredPlayerByUsername retrieves credentials by login username.
func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	return s.getRegisteredPlayer(ctx, sq.Eq{"username": username})
}

func (s *Storage) getRegisteredPlayer(ctx context.Context, where sq.Eq) (*model.RegisteredPlayer, error) {
	query, args, err := psq.Select("player_id", "username", "password_hash", "created_at", "updated_at").
		From("registered_players").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building registered player query: %w", err)
	}

	var rp model.RegisteredPlayer
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rp.PlayerID, &rp.Username, &rp.PasswordHash, &rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, unavailable(fmt.Errorf("querying registered player: %w", err))
	}
	rp.CreatedAt = rp.CreatedAt.UTC()
	rp.UpdatedAt = rp.UpdatedAt.UTC()
	return &rp, nil
}
