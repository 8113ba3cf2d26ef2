// Package models holds the persisted domain types shared by repositories
// and services.
package models

import "time"

// User is one registered account. Rows are created at registration and
// never mutated or deleted afterwards.
type User struct {
	ID           int64
	Username     string
	Salt         []byte
	PasswordHash []byte
	CreatedAt    time.Time
}
