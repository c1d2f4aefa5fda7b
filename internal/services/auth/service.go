package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/puzzlegame/internal/dependencies/clock"
	"github.com/mcoot/puzzlegame/internal/dependencies/ids"
	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
)

// TokenCookieName is the cookie browsers carry their login token in
const TokenCookieName = "puzzle_token"

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameExists     = errors.New("username already exists")
)

// Token is an authenticated player login
type Token struct {
	Value     string
	PlayerID  model.PlayerID
	Player    model.Player
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service handles player accounts and login tokens
type Service struct {
	players storage.PlayerStore
	clock   clock.Clock
	ids     ids.Generator
	logger  *slog.Logger

	mu     sync.RWMutex
	tokens map[string]*Token

	tokenDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	TokenDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		TokenDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(players storage.PlayerStore, clock clock.Clock, ids ids.Generator, cfg Config, logger *slog.Logger) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultConfig().TokenDuration
	}
	return &Service{
		players:       players,
		clock:         clock,
		ids:           ids,
		logger:        logger,
		tokens:        make(map[string]*Token),
		tokenDuration: cfg.TokenDuration,
	}
}

// CreateGuestPlayer creates an anonymous player and logs them in
func (s *Service) CreateGuestPlayer(ctx context.Context, displayName string) (*Token, error) {
	player := &model.Player{
		ID:          model.PlayerID(s.ids.Token("p_")),
		DisplayName: displayName,
		IsGuest:     true,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.players.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("guest player created", slog.String("player_id", string(player.ID)))
	return s.issueToken(player), nil
}

// RegisterPlayer creates a registered player account and logs them in
func (s *Service) RegisterPlayer(ctx context.Context, username, password, displayName string) (*Token, error) {
	_, err := s.players.GetRegisteredPlayerByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	playerID := model.PlayerID(s.ids.Token("p_"))
	now := s.clock.Now()

	player := &model.Player{
		ID:          playerID,
		DisplayName: displayName,
		IsGuest:     false,
		CreatedAt:   now,
	}

	registeredPlayer := &model.RegisteredPlayer{
		PlayerID:     playerID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.players.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	if err := s.players.SaveRegisteredPlayer(ctx, registeredPlayer); err != nil {
		// A unique username index can still reject a racing registration
		if errors.Is(err, model.ErrConflict) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(playerID)),
		slog.String("username", username),
	)
	return s.issueToken(player), nil
}

// Login authenticates a registered player and issues a token
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	rp, err := s.players.GetRegisteredPlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	player, err := s.players.GetPlayer(ctx, rp.PlayerID)
	if err != nil {
		return nil, err
	}

	return s.issueToken(player), nil
}

// ValidateToken checks if a token is valid and returns it
func (s *Service) ValidateToken(value string) (*Token, error) {
	s.mu.RLock()
	token, ok := s.tokens[value]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	if s.clock.Now().After(token.ExpiresAt) {
		s.mu.Lock()
		delete(s.tokens, value)
		s.mu.Unlock()
		return nil, ErrInvalidToken
	}

	return token, nil
}

// InvalidateToken removes a token
func (s *Service) InvalidateToken(value string) {
	s.mu.Lock()
	delete(s.tokens, value)
	s.mu.Unlock()
}

// GetPlayer returns the player for a token
func (s *Service) GetPlayer(value string) (*model.Player, error) {
	token, err := s.ValidateToken(value)
	if err != nil {
		return nil, err
	}
	return &token.Player, nil
}

func (s *Service) issueToken(player *model.Player) *Token {
	now := s.clock.Now()

	token := &Token{
		Value:     s.ids.Token("tok_"),
		PlayerID:  player.ID,
		Player:    *player,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenDuration),
	}

	s.mu.Lock()
	s.tokens[token.Value] = token
	s.mu.Unlock()

	return token
}

// CleanExpiredTokens removes expired tokens and reports how many were dropped
func (s *Service) CleanExpiredTokens() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for value, token := range s.tokens {
		if now.After(token.ExpiresAt) {
			delete(s.tokens, value)
			removed++
		}
	}
	return removed
}

// RunJanitor cleans expired tokens every interval until ctx is done
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanExpiredTokens(); n > 0 {
				s.logger.Debug("expired tokens removed", slog.Int("count", n))
			}
		}
	}
}
