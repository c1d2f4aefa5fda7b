package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/puzzlegame/internal/dependencies/mocks"
	"github.com/mcoot/puzzlegame/internal/storage/memory"
	"github.com/mcoot/puzzlegame/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, mocks.NewMockIDs(), DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

// CreateGuestPlayer tests

func (s *ServiceSuite) TestCreateGuestPlayerSucceeds() {
	token, err := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	s.NotEmpty(token.Value)
	s.Equal("Alice", token.Player.DisplayName)
	s.True(token.Player.IsGuest)
	s.NotEmpty(token.PlayerID)
}

func (s *ServiceSuite) TestCreateGuestPlayerPersistsPlayer() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	player, err := s.storage.GetPlayer(s.ctx, token.PlayerID)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
}

func (s *ServiceSuite) TestCreateGuestPlayerTokenIsValid() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	validated, err := s.service.ValidateToken(token.Value)
	s.Require().NoError(err)
	s.Equal(token.PlayerID, validated.PlayerID)
}

// RegisterPlayer tests

func (s *ServiceSuite) TestRegisterPlayerSucceeds() {
	token, err := s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.NotEmpty(token.Value)
	s.Equal("Alice", token.Player.DisplayName)
	s.False(token.Player.IsGuest)
}

func (s *ServiceSuite) TestRegisterPlayerPersistsRegistration() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	rp, err := s.storage.GetRegisteredPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", rp.Username)
	s.NotEmpty(rp.PasswordHash)
	s.NotEqual("password123", rp.PasswordHash) // Should be hashed
}

func (s *ServiceSuite) TestRegisterPlayerFailsIfUsernameExists() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.RegisterPlayer(s.ctx, "alice", "different", "Alice2")
	s.ErrorIs(err, ErrUsernameExists)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	token, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)

	s.NotEmpty(token.Value)
	s.Equal("Alice", token.Player.DisplayName)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, _ = s.service.RegisterPlayer(s.ctx, "alice", "password123", "Alice")

	_, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ValidateToken tests

func (s *ServiceSuite) TestValidateTokenSucceeds() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	validated, err := s.service.ValidateToken(token.Value)
	s.Require().NoError(err)
	s.Equal(token.Value, validated.Value)
}

func (s *ServiceSuite) TestValidateTokenFailsWithInvalidToken() {
	_, err := s.service.ValidateToken("invalid_token")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestValidateTokenFailsWhenExpired() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	// Advance time past expiration
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateToken(token.Value)
	s.ErrorIs(err, ErrInvalidToken)
}

// InvalidateToken tests

func (s *ServiceSuite) TestInvalidateTokenRemovesToken() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	s.service.InvalidateToken(token.Value)

	_, err := s.service.ValidateToken(token.Value)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServiceSuite) TestInvalidateTokenNoopForUnknownToken() {
	// Should not panic
	s.service.InvalidateToken("unknown_token")
}

// GetPlayer tests

func (s *ServiceSuite) TestGetPlayerSucceeds() {
	token, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	player, err := s.service.GetPlayer(token.Value)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
}

func (s *ServiceSuite) TestGetPlayerFailsWithInvalidToken() {
	_, err := s.service.GetPlayer("invalid_token")
	s.ErrorIs(err, ErrInvalidToken)
}

// CleanExpiredTokens tests

func (s *ServiceSuite) TestCleanExpiredTokensRemovesExpired() {
	token1, _ := s.service.CreateGuestPlayer(s.ctx, "Alice")

	// Advance time so token1 expires
	s.clock.Advance(25 * time.Hour)

	// Create a new token (not expired)
	token2, _ := s.service.CreateGuestPlayer(s.ctx, "Bob")

	s.service.CleanExpiredTokens()

	// token1 should be gone
	_, err := s.service.ValidateToken(token1.Value)
	s.ErrorIs(err, ErrInvalidToken)

	// token2 should still be valid
	_, err = s.service.ValidateToken(token2.Value)
	s.NoError(err)
}

func (s *ServiceSuite) TestCleanExpiredTokensReportsCount() {
	_, _ = s.service.CreateGuestPlayer(s.ctx, "Alice")
	_, _ = s.service.CreateGuestPlayer(s.ctx, "Bob")
	s.clock.Advance(25 * time.Hour)

	s.Equal(2, s.service.CleanExpiredTokens())
	s.Equal(0, s.service.CleanExpiredTokens())
}

func (s *ServiceSuite) TestRunJanitorStopsWithContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.service.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("janitor did not stop")
	}
}

func (s *ServiceSuite) TestPlayerIDIsOwnerID() {
	token, err := s.service.CreateGuestPlayer(s.ctx, "Alice")
	s.Require().NoError(err)

	s.Equal(string(token.PlayerID), string(token.Player.OwnerID()))
}
