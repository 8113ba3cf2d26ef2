package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/dbx"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Group, error) {

	query :=
		`INSERT INTO groups (name)
		 VALUES ($1)
		 RETURNING id
		 `

	group := &models.Group{Name: name}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&group.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return group, nil
}

// AddMember resolves both ids in one INSERT ... SELECT so a vanished group
// or user shows up as zero affected rows rather than a foreign key error.
func (r *PostgresRepository) AddMember(ctx context.Context, group, username string) error {

	query :=
		`INSERT INTO group_members (group_id, user_id)
		 SELECT g.id, u.id FROM groups g, users u
		 WHERE g.name = $1 AND u.username = $2
		 `

	res, err := r.db.ExecContext(ctx, query, group, username)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

// Members looks the group up first so an unknown name is distinguishable
// from a group that exists but is empty.
func (r *PostgresRepository) Members(ctx context.Context, group string) ([]string, error) {

	var groupID int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM groups WHERE name = $1`, group).Scan(&groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	query :=
		`SELECT u.username
		 FROM users u
		 JOIN group_members gm ON u.id = gm.user_id
		 WHERE gm.group_id = $1
		 ORDER BY u.username
		 `

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		members = append(members, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return members, nil
}
