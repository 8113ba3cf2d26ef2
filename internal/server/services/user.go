// Package services contains server-side business logic. This file implements
// UserService, which handles registration and password login on top of the
// credential engine and the users repository.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/cryptox"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/repomanager"
)

// UserService provides authentication-related operations:
// - Register: create a user with a fresh salt and derived password hash
// - Login: verify credentials with a constant-time comparison
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	kdfIterations int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		kdfIterations: cfg.KDFIterations,
	}
}

// Register creates a new user. The plaintext password never leaves this
// function: it is stretched into a hash and wiped. A taken username yields
// common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	salt := cryptox.GenerateSalt(cryptox.SaltLength)
	pw := []byte(password)
	hash := cryptox.DeriveKey(pw, salt, s.kdfIterations, cryptox.KeyLength)
	common.WipeByteArray(pw)

	user := &models.User{Username: username, Salt: salt, PasswordHash: hash}
	repo := s.repomanager.Users(s.db)

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the password against the stored hash. An unknown username
// yields common.ErrorNotFound, a wrong password common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	pw := []byte(password)
	candidate := cryptox.DeriveKey(pw, user.Salt, s.kdfIterations, cryptox.KeyLength)
	common.WipeByteArray(pw)

	if !cryptox.ConstantTimeEqual(user.PasswordHash, candidate) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}
