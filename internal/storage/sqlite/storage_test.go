package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.StoreSuite
	path    string
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "puzzle.db")

	store, err := Open(s.path)
	s.Require().NoError(err)

	s.storage = store
	s.Store = store
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestOpenRequiresPath() {
	_, err := Open("  ")
	s.Error(err)
}

func (s *StorageSuite) TestReopenKeepsData() {
	_, err := s.storage.CreateSession(s.Ctx, storagetest.NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)
	s.Require().NoError(s.storage.Close())

	// Migrations are already applied; reopening must be a no-op for the schema
	reopened, err := Open(s.path)
	s.Require().NoError(err)
	s.storage = reopened

	session, err := reopened.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionStateInProgress, session.State)
}

func (s *StorageSuite) TestTimestampsStoredAtMillisecondPrecision() {
	session := storagetest.NewInProgressSession("s-1", "owner-1", "p1")
	started := time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)
	session.StartedAt = &started

	_, err := s.storage.CreateSession(s.Ctx, session)
	s.Require().NoError(err)

	retrieved, err := s.storage.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(started.Truncate(time.Millisecond), *retrieved.StartedAt)
}

func (s *StorageSuite) TestClosedDatabaseIsTransient() {
	s.Require().NoError(s.storage.Close())

	_, err := s.storage.GetSession(s.Ctx, "s-1")
	s.ErrorIs(err, model.ErrStoreUnavailable)
}
