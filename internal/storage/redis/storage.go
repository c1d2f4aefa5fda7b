package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// unavailable marks a backend failure as transient
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}

// Session operations

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.PuzzleSession, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, unavailable(err)
	}
	return decodeSession(data)
}

func (s *Storage) FindActiveSession(ctx context.Context, owner model.OwnerID, ref model.PuzzleRef) (*model.PuzzleSession, error) {
	id, err := s.client.Get(ctx, activeSessionKey(owner, ref)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, unavailable(err)
	}

	session, err := s.GetSession(ctx, model.SessionID(id))
	if err != nil {
		return nil, err
	}
	// The index entry may have been read just before a concurrent completion
	if !session.IsActive() || session.Owner != owner || session.PuzzleRef != ref {
		return nil, model.ErrSessionNotFound
	}
	return session, nil
}

func (s *Storage) CreateSession(ctx context.Context, session *model.PuzzleSession) (*model.PuzzleSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	sKey := sessionKey(session.ID)
	aKey := activeSessionKey(session.Owner, session.PuzzleRef)

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, sKey, aKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrConflict
		}

		// Record and index are written together or not at all
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sKey, data, 0)
			if session.IsActive() {
				pipe.Set(ctx, aKey, string(session.ID), 0)
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, sKey, aKey)
	switch {
	case err == nil:
		return session.Clone(), nil
	case errors.Is(err, model.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return nil, model.ErrConflict
	default:
		return nil, unavailable(err)
	}
}

func (s *Storage) CompareAndSetSession(ctx context.Context, id model.SessionID, expected model.SessionState, update model.SessionUpdate) (*model.PuzzleSession, error) {
	sKey := sessionKey(id)
	var result *model.PuzzleSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, sKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrSessionNotFound
			}
			return err
		}

		current, err := decodeSession(data)
		if err != nil {
			return err
		}
		if current.State != expected {
			return model.ErrStaleState
		}

		next := update.Apply(current)
		nextData, err := json.Marshal(next)
		if err != nil {
			return err
		}

		// Only drop the index entry while it still points at this session
		dropIndex := false
		aKey := activeSessionKey(next.Owner, next.PuzzleRef)
		if !next.IsActive() {
			if err := tx.Watch(ctx, aKey).Err(); err != nil {
				return err
			}
			indexed, err := tx.Get(ctx, aKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			dropIndex = indexed == string(id)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sKey, nextData, 0)
			if dropIndex {
				pipe.Del(ctx, aKey)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	err := s.client.Watch(ctx, txf, sKey)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrStaleState):
		return nil, err
	case errors.Is(err, redis.TxFailedErr):
		// Someone else wrote the record between our read and EXEC
		return nil, model.ErrStaleState
	default:
		return nil, unavailable(err)
	}
}

func decodeSession(data []byte) (*model.PuzzleSession, error) {
	var session model.PuzzleSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Apply TTL only for guest players
	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}

	return s.client.Set(ctx, playerKey(player.ID), data, ttl).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0) // No TTL
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	data, err := s.client.Get(ctx, registeredPlayerKey(playerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var rp model.RegisteredPlayer
	if err := json.Unmarshal(data, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	// Look up player ID from username index
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}
