// Package groups persists named groups and their membership relation.
package groups

import (
	"context"

	"github.com/dmitrijs2005/chatrelay/internal/server/models"
)

type Repository interface {
	// Create stores a new group. A name collision yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, name string) (*models.Group, error)

	// AddMember records that username belongs to group. Returns
	// common.ErrorNotFound when either side does not exist and
	// common.ErrorAlreadyExists when the membership is already recorded.
	AddMember(ctx context.Context, group, username string) error

	// Members lists the usernames belonging to group. An unknown group
	// yields common.ErrorNotFound; an existing empty group an empty list.
	Members(ctx context.Context, group string) ([]string, error)
}
