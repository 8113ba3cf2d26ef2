package groups

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/chatrelay/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const createQ = `(?s)^INSERT\s+INTO\s+groups\s*\(name\)\s*VALUES\s*\(\$1\)\s*RETURNING\s+id\s*$`
const addMemberQ = `(?s)^INSERT\s+INTO\s+group_members\s*\(group_id,\s*user_id\)\s*SELECT\s+g\.id,\s*u\.id\s+FROM\s+groups\s+g,\s*users\s+u\s+WHERE\s+g\.name\s*=\s*\$1\s+AND\s+u\.username\s*=\s*\$2\s*$`
const groupIDQ = `(?s)^SELECT\s+id\s+FROM\s+groups\s+WHERE\s+name\s*=\s*\$1\s*$`
const membersQ = `(?s)^SELECT\s+u\.username\s+FROM\s+users\s+u\s+JOIN\s+group_members\s+gm\s+ON\s+u\.id\s*=\s*gm\.user_id\s+WHERE\s+gm\.group_id\s*=\s*\$1\s+ORDER\s+BY\s+u\.username\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(createQ).
		WithArgs("devs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	got, err := repo.Create(context.Background(), "devs")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 3 || got.Name != "devs" {
		t.Fatalf("unexpected group: %+v", got)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(createQ).
		WithArgs("devs").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), "devs")
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestAddMember_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(addMemberQ).
		WithArgs("devs", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), "devs", "alice"); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
}

func TestAddMember_UnknownGroupOrUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(addMemberQ).
		WithArgs("nope", "alice").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddMember(context.Background(), "nope", "alice")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestAddMember_AlreadyMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(addMemberQ).
		WithArgs("devs", "alice").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.AddMember(context.Background(), "devs", "alice")
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestMembers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(groupIDQ).
		WithArgs("devs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	rows := sqlmock.NewRows([]string{"username"}).AddRow("alice").AddRow("bob")
	mock.ExpectQuery(membersQ).WithArgs(int64(3)).WillReturnRows(rows)

	got, err := repo.Members(context.Background(), "devs")
	if err != nil {
		t.Fatalf("Members error: %v", err)
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("unexpected members: %v", got)
	}
}

func TestMembers_EmptyGroup(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(groupIDQ).
		WithArgs("devs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(membersQ).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"username"}))

	got, err := repo.Members(context.Background(), "devs")
	if err != nil {
		t.Fatalf("Members error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestMembers_UnknownGroup(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(groupIDQ).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Members(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
