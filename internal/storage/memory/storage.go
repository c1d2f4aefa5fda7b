package memory

import (
	"context"
	"sync"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	sessions      map[model.SessionID]*model.PuzzleSession
	activeIndex   map[activeKey]model.SessionID
	players       map[model.PlayerID]*model.Player
	registered    map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex map[string]model.PlayerID
}

type activeKey struct {
	owner model.OwnerID
	ref   model.PuzzleRef
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions:      make(map[model.SessionID]*model.PuzzleSession),
		activeIndex:   make(map[activeKey]model.SessionID),
		players:       make(map[model.PlayerID]*model.Player),
		registered:    make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex: make(map[string]model.PlayerID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Session operations

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) FindActiveSession(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.PuzzleSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeIndex[activeKey{owner: owner, ref: ref}]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return s.sessions[id].Clone(), nil
}

func (s *Storage) CreateSession(ctx context.Context, session *model.PuzzleSession) (*model.PuzzleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return nil, model.ErrConflict
	}
	key := activeKey{owner: session.Owner, ref: session.PuzzleRef}
	if session.IsActive() {
		if _, exists := s.activeIndex[key]; exists {
			return nil, model.ErrConflict
		}
		s.activeIndex[key] = session.ID
	}
	s.sessions[session.ID] = session.Clone()
	return session.Clone(), nil
}

func (s *Storage) CompareAndSetSession(ctx context.Context, id model.SessionID, expected model.SessionState, update model.SessionUpdate) (*model.PuzzleSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if current.State != expected {
		return nil, model.ErrStaleState
	}

	next := update.Apply(current)
	s.sessions[id] = next
	if !next.IsActive() {
		key := activeKey{owner: next.Owner, ref: next.PuzzleRef}
		if s.activeIndex[key] == id {
			delete(s.activeIndex, key)
		}
	}
	return next.Clone(), nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registered[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registered[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}
