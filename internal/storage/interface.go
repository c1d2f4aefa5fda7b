package storage

import (
	"context"

	"github.com/mcoot/puzzlegame/internal/model"
)

// SessionStore is keyed storage for puzzle sessions.
//
// Implementations provide single-record atomicity only. CreateSession and
// CompareAndSetSession are the sole concurrency primitives the lifecycle
// manager relies on.
type SessionStore interface {
	// GetSession returns model.ErrSessionNotFound if id is unknown
	GetSession(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error)

	// FindActiveSession returns the non-completed session for (owner, ref),
	// or model.ErrSessionNotFound
	FindActiveSession(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.PuzzleSession, error)

	// CreateSession fails with model.ErrConflict if the id exists or an
	// active session already exists for the same (owner, ref)
	CreateSession(ctx context.Context, session *model.PuzzleSession) (*model.PuzzleSession, error)

	// CompareAndSetSession applies update only if the stored state equals
	// expected at write time, failing with model.ErrStaleState otherwise.
	// Moving a session to completed drops it from the active index.
	CompareAndSetSession(ctx context.Context, id model.SessionID, expected model.SessionState, update model.SessionUpdate) (*model.PuzzleSession, error)
}

// PlayerStore persists players and their credentials
type PlayerStore interface {
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)
}

// Storage defines the interface for data persistence
type Storage interface {
	SessionStore
	PlayerStore

	Close() error
}
