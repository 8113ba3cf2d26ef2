package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
)

// Low iteration count keeps the key derivation cheap in tests.
func newUserService(m *fakeRepoManager) *UserService {
	return NewUserService(nil, m, &config.Config{KDFIterations: 16})
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	m := newFakeRepoManager()
	s := newUserService(m)
	ctx := context.Background()

	u, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Len(t, u.Salt, 16)
	assert.Len(t, u.PasswordHash, 32)

	got, err := s.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	m := newFakeRepoManager()
	s := newUserService(m)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = s.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestUserService_LoginUnknownUser(t *testing.T) {
	s := newUserService(newFakeRepoManager())

	_, err := s.Login(context.Background(), "ghost", "secret")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUserService_LoginWrongPassword(t *testing.T) {
	m := newFakeRepoManager()
	s := newUserService(m)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = s.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestUserService_RegisterStorageError(t *testing.T) {
	m := newFakeRepoManager()
	m.users.err = errors.New("connection lost")
	s := newUserService(m)

	_, err := s.Register(context.Background(), "alice", "secret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
}
