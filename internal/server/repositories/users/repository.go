// Package users persists registered accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/chatrelay/internal/server/models"
)

type Repository interface {
	// Create stores a new user. A username collision yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername returns the stored user or common.ErrorNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
