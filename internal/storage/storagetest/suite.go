// Package storagetest holds the behavioural contract every storage backend
// must satisfy. Backend test suites embed StoreSuite and assign Store in
// their own SetupTest.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage"
)

// StoreSuite runs the shared storage contract against Store
type StoreSuite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// NewInProgressSession builds a started session record for tests
func NewInProgressSession(id model.SessionID, owner model.OwnerID, ref model.PuzzleRef) *model.PuzzleSession {
	started := baseTime
	return &model.PuzzleSession{
		ID:        id,
		Owner:     owner,
		PuzzleRef: ref,
		State:     model.SessionStateInProgress,
		StartedAt: &started,
	}
}

func completeUpdate(at time.Time) model.SessionUpdate {
	return model.SessionUpdate{State: model.SessionStateCompleted, CompletedAt: &at}
}

// Session tests

func (s *StoreSuite) TestCreateAndGetSession() {
	session := NewInProgressSession("s-1", "owner-1", "p1")

	created, err := s.Store.CreateSession(s.Ctx, session)
	s.Require().NoError(err)
	s.Equal(session.ID, created.ID)

	retrieved, err := s.Store.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.OwnerID("owner-1"), retrieved.Owner)
	s.Equal(model.PuzzleRef("p1"), retrieved.PuzzleRef)
	s.Equal(model.SessionStateInProgress, retrieved.State)
	s.Require().NotNil(retrieved.StartedAt)
	s.WithinDuration(baseTime, *retrieved.StartedAt, 0)
	s.Nil(retrieved.CompletedAt)
}

func (s *StoreSuite) TestGetSessionNotFound() {
	_, err := s.Store.GetSession(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestCreateSessionDuplicateIDConflicts() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-2", "p2"))
	s.ErrorIs(err, model.ErrConflict)
}

func (s *StoreSuite) TestCreateSessionActiveDuplicateConflicts() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-2", "owner-1", "p1"))
	s.ErrorIs(err, model.ErrConflict)

	_, err = s.Store.GetSession(s.Ctx, "s-2")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestCreateSessionOtherOwnerOrPuzzleSucceeds() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-2", "owner-2", "p1"))
	s.NoError(err)

	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-3", "owner-1", "p2"))
	s.NoError(err)
}

func (s *StoreSuite) TestPairsWithSeparatorsStayDistinct() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "a:b", "c"))
	s.Require().NoError(err)
	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-2", "a", "b:c"))
	s.Require().NoError(err)

	first, err := s.Store.FindActiveSession(s.Ctx, "a:b", "c")
	s.Require().NoError(err)
	s.Equal(model.SessionID("s-1"), first.ID)

	second, err := s.Store.FindActiveSession(s.Ctx, "a", "b:c")
	s.Require().NoError(err)
	s.Equal(model.SessionID("s-2"), second.ID)
	s.Equal(model.OwnerID("a"), second.Owner)
	s.Equal(model.PuzzleRef("b:c"), second.PuzzleRef)

	_, err = s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(baseTime.Add(time.Minute)))
	s.Require().NoError(err)

	_, err = s.Store.FindActiveSession(s.Ctx, "a:b", "c")
	s.ErrorIs(err, model.ErrSessionNotFound)

	still, err := s.Store.FindActiveSession(s.Ctx, "a", "b:c")
	s.Require().NoError(err)
	s.Equal(model.SessionID("s-2"), still.ID)
}

func (s *StoreSuite) TestFindActiveSession() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	active, err := s.Store.FindActiveSession(s.Ctx, "owner-1", "p1")
	s.Require().NoError(err)
	s.Equal(model.SessionID("s-1"), active.ID)

	_, err = s.Store.FindActiveSession(s.Ctx, "owner-1", "p2")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestCompareAndSetCompletesSession() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	completedAt := baseTime.Add(5 * time.Minute)
	updated, err := s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(completedAt))
	s.Require().NoError(err)
	s.Equal(model.SessionStateCompleted, updated.State)
	s.Require().NotNil(updated.CompletedAt)
	s.WithinDuration(completedAt, *updated.CompletedAt, 0)

	retrieved, err := s.Store.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionStateCompleted, retrieved.State)
	s.WithinDuration(completedAt, *retrieved.CompletedAt, 0)
	s.WithinDuration(baseTime, *retrieved.StartedAt, 0)
}

func (s *StoreSuite) TestCompareAndSetRemovesFromActiveIndex() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	_, err = s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(baseTime.Add(time.Minute)))
	s.Require().NoError(err)

	_, err = s.Store.FindActiveSession(s.Ctx, "owner-1", "p1")
	s.ErrorIs(err, model.ErrSessionNotFound)

	// A fresh attempt at the same puzzle is allowed once the previous one is done
	_, err = s.Store.CreateSession(s.Ctx, NewInProgressSession("s-2", "owner-1", "p1"))
	s.NoError(err)
}

func (s *StoreSuite) TestCompareAndSetStaleState() {
	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	first := baseTime.Add(time.Minute)
	_, err = s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(first))
	s.Require().NoError(err)

	_, err = s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(baseTime.Add(time.Hour)))
	s.ErrorIs(err, model.ErrStaleState)

	retrieved, err := s.Store.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.WithinDuration(first, *retrieved.CompletedAt, 0)
}

func (s *StoreSuite) TestCompareAndSetNotFound() {
	_, err := s.Store.CompareAndSetSession(s.Ctx, "nonexistent", model.SessionStateInProgress, completeUpdate(baseTime))
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StoreSuite) TestConcurrentCreateHasSingleWinner() {
	const attempts = 10

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.SessionID(fmt.Sprintf("s-%d", i))
			_, errs[i] = s.Store.CreateSession(s.Ctx, NewInProgressSession(id, "owner-1", "p1"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		s.ErrorIs(err, model.ErrConflict)
	}
	s.Equal(1, created)
}

func (s *StoreSuite) TestConcurrentCompareAndSetHasSingleWinner() {
	const attempts = 10

	_, err := s.Store.CreateSession(s.Ctx, NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			at := baseTime.Add(time.Duration(i+1) * time.Second)
			_, errs[i] = s.Store.CompareAndSetSession(s.Ctx, "s-1", model.SessionStateInProgress, completeUpdate(at))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		s.ErrorIs(err, model.ErrStaleState)
	}
	s.Equal(1, won)
}

// Player tests

func (s *StoreSuite) TestSaveAndGetPlayer() {
	player := &model.Player{
		ID:          "player-1",
		DisplayName: "Alice",
		IsGuest:     true,
		CreatedAt:   baseTime,
	}

	err := s.Store.SavePlayer(s.Ctx, player)
	s.Require().NoError(err)

	retrieved, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal(player.DisplayName, retrieved.DisplayName)
	s.True(retrieved.IsGuest)
}

func (s *StoreSuite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StoreSuite) TestSaveAndGetRegisteredPlayer() {
	s.Require().NoError(s.Store.SavePlayer(s.Ctx, &model.Player{ID: "player-1", DisplayName: "Alice", CreatedAt: baseTime}))

	rp := &model.RegisteredPlayer{
		PlayerID:     "player-1",
		Username:     "alice",
		PasswordHash: "hash123",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	err := s.Store.SaveRegisteredPlayer(s.Ctx, rp)
	s.Require().NoError(err)

	retrieved, err := s.Store.GetRegisteredPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Username)

	byName, err := s.Store.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), byName.PlayerID)
	s.Equal("hash123", byName.PasswordHash)
}

func (s *StoreSuite) TestGetRegisteredPlayerByUsernameNotFound() {
	_, err := s.Store.GetRegisteredPlayerByUsername(s.Ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}
