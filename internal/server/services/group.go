package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/repomanager"
)

// GroupService is a thin pass-through to the groups repository.
type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager) *GroupService {
	return &GroupService{db: db, repomanager: m}
}

// Create makes a new empty group. A taken name yields
// common.ErrorAlreadyExists.
func (s *GroupService) Create(ctx context.Context, name string) error {
	if _, err := s.repomanager.Groups(s.db).Create(ctx, name); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error creating group: %w", err)
	}
	return nil
}

// Join adds username to the group. Joining a group twice is a no-op;
// an unknown group or user yields common.ErrorNotFound.
func (s *GroupService) Join(ctx context.Context, group, username string) error {
	err := s.repomanager.Groups(s.db).AddMember(ctx, group, username)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil
		}
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error joining group: %w", err)
	}
	return nil
}

// Members lists the group's usernames. An unknown group yields
// common.ErrorNotFound.
func (s *GroupService) Members(ctx context.Context, group string) ([]string, error) {
	members, err := s.repomanager.Groups(s.db).Members(ctx, group)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error listing group members: %w", err)
	}
	return members, nil
}
