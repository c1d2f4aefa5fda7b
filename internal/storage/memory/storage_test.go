package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/puzzlegame/internal/model"
	"github.com/mcoot/puzzlegame/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.StoreSuite
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.Store = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestReturnedSessionsAreCopies() {
	created, err := s.storage.CreateSession(s.Ctx, storagetest.NewInProgressSession("s-1", "owner-1", "p1"))
	s.Require().NoError(err)

	created.State = model.SessionStateCompleted

	retrieved, err := s.storage.GetSession(s.Ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionStateInProgress, retrieved.State)
}
