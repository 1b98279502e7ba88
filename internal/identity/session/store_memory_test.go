package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func makeSession(identity string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:         domain.NewSessionID(),
		IdentityID: domain.IdentityID(identity),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func (s *MemoryStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	sess := makeSession("alice", time.Hour)

	s.Require().NoError(s.store.Save(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.IdentityID, found.IdentityID)
	s.Equal(sess.ID, found.ID)
}

func (s *MemoryStoreSuite) TestFindMissingReturnsNotFound() {
	_, err := s.store.FindByID(context.Background(), domain.NewSessionID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestExpiredSessionReadsAsExpired() {
	ctx := context.Background()
	sess := makeSession("alice", -time.Minute)

	s.Require().NoError(s.store.Save(ctx, sess))

	_, err := s.store.FindByID(ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *MemoryStoreSuite) TestDelete() {
	ctx := context.Background()
	sess := makeSession("alice", time.Hour)

	s.Require().NoError(s.store.Save(ctx, sess))
	s.Require().NoError(s.store.Delete(ctx, sess.ID))

	_, err := s.store.FindByID(ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Deleting an absent session is not an error.
	s.Require().NoError(s.store.Delete(ctx, sess.ID))
}
