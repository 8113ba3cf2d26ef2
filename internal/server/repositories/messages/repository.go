// Package messages persists message rows and their delivery state.
package messages

import (
	"context"

	"github.com/dmitrijs2005/chatrelay/internal/server/models"
)

type Repository interface {
	// Save stores one message with a store-assigned id and timestamp and
	// delivered=false, returning the stored row.
	Save(ctx context.Context, sender, receiver, content string) (*models.Message, error)

	// History returns the newest limit messages where username is sender
	// or receiver, ordered oldest-first.
	History(ctx context.Context, username string, limit int) ([]*models.Message, error)

	// Undelivered returns all undelivered messages addressed to username,
	// oldest-first.
	Undelivered(ctx context.Context, username string) ([]*models.Message, error)

	// MarkDelivered flips delivered=true for every currently-undelivered
	// message addressed to username. A coarse sweep, not a per-message ack.
	MarkDelivered(ctx context.Context, username string) error

	// Stats aggregates the user's sent count and last sent timestamp.
	Stats(ctx context.Context, username string) (*models.UserStats, error)
}
