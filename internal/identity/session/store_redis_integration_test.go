//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cartsync/internal/identity/session"
	"cartsync/pkg/domain"
	"cartsync/pkg/platform/sentinel"
	"cartsync/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession(identityID domain.IdentityID, ttl time.Duration) *session.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &session.Session{
		ID:         domain.NewSessionID(),
		IdentityID: identityID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func (s *RedisStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	sess := makeSession("alice", time.Hour)

	s.Require().NoError(s.store.Save(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.ID, found.ID)
	s.Equal(sess.IdentityID, found.IdentityID)
	s.True(sess.ExpiresAt.Equal(found.ExpiresAt))
}

func (s *RedisStoreSuite) TestFindUnknownReturnsNotFound() {
	_, err := s.store.FindByID(context.Background(), domain.NewSessionID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSaveExpiredRejected() {
	sess := makeSession("alice", -time.Minute)
	err := s.store.Save(context.Background(), sess)
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *RedisStoreSuite) TestTTLEvictsSession() {
	ctx := context.Background()
	sess := makeSession("alice", 500*time.Millisecond)
	s.Require().NoError(s.store.Save(ctx, sess))

	s.Require().Eventually(func() bool {
		_, err := s.store.FindByID(ctx, sess.ID)
		return err != nil
	}, 3*time.Second, 100*time.Millisecond, "session should expire out of redis")
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	sess := makeSession("alice", time.Hour)
	s.Require().NoError(s.store.Save(ctx, sess))

	s.Require().NoError(s.store.Delete(ctx, sess.ID))

	_, err := s.store.FindByID(ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Deleting an absent session is a no-op.
	s.Require().NoError(s.store.Delete(ctx, sess.ID))
}
