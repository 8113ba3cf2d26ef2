package services

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/dbx"
	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/protocol"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/groups"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/messages"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/users"
)

// In-memory repositories so service logic can be tested without a database.
// The DBTX handed to the manager is ignored: all fakes share one state.

type fakeUserRepo struct {
	byName map[string]*models.User
	nextID int64
	err    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byName: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.byName[user.Username]; ok {
		return nil, common.ErrorAlreadyExists
	}
	r.nextID++
	stored := *user
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()
	r.byName[user.Username] = &stored
	return &stored, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byName[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeMessageRepo struct {
	rows    []*models.Message
	nextID  int64
	saveErr error
	loadErr error
	markErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Save(_ context.Context, sender, receiver, content string) (*models.Message, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.nextID++
	m := &models.Message{
		ID:       r.nextID,
		Sender:   sender,
		Receiver: receiver,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	r.rows = append(r.rows, m)
	return m, nil
}

func (r *fakeMessageRepo) History(_ context.Context, username string, limit int) ([]*models.Message, error) {
	var mine []*models.Message
	for _, m := range r.rows {
		if m.Sender == username || m.Receiver == username {
			mine = append(mine, m)
		}
	}
	if len(mine) > limit {
		mine = mine[len(mine)-limit:]
	}
	return mine, nil
}

func (r *fakeMessageRepo) Undelivered(_ context.Context, username string) ([]*models.Message, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	var pending []*models.Message
	for _, m := range r.rows {
		if m.Receiver == username && !m.Delivered {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (r *fakeMessageRepo) MarkDelivered(_ context.Context, username string) error {
	if r.markErr != nil {
		return r.markErr
	}
	for _, m := range r.rows {
		if m.Receiver == username {
			m.Delivered = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) Stats(_ context.Context, username string) (*models.UserStats, error) {
	stats := &models.UserStats{}
	for _, m := range r.rows {
		if m.Sender == username {
			stats.SentCount++
			if m.SentAt.After(stats.LastSent) {
				stats.LastSent = m.SentAt
			}
		}
	}
	return stats, nil
}

type fakeGroupRepo struct {
	members map[string][]string
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{members: make(map[string][]string)}
}

func (r *fakeGroupRepo) Create(_ context.Context, name string) (*models.Group, error) {
	if _, ok := r.members[name]; ok {
		return nil, common.ErrorAlreadyExists
	}
	r.members[name] = nil
	return &models.Group{ID: int64(len(r.members)), Name: name}, nil
}

func (r *fakeGroupRepo) AddMember(_ context.Context, group, username string) error {
	list, ok := r.members[group]
	if !ok {
		return common.ErrorNotFound
	}
	for _, m := range list {
		if m == username {
			return common.ErrorAlreadyExists
		}
	}
	r.members[group] = append(list, username)
	return nil
}

func (r *fakeGroupRepo) Members(_ context.Context, group string) ([]string, error) {
	list, ok := r.members[group]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := append([]string(nil), list...)
	sort.Strings(out)
	return out, nil
}

type fakeRepoManager struct {
	users    *fakeUserRepo
	messages *fakeMessageRepo
	groups   *fakeGroupRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    newFakeUserRepo(),
		messages: newFakeMessageRepo(),
		groups:   newFakeGroupRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository { return m.messages }

func (m *fakeRepoManager) Groups(dbx.DBTX) groups.Repository { return m.groups }

type pushCall struct {
	resp *protocol.Response
}

type fakeLiveSession struct {
	id      uuid.UUID
	pushes  []pushCall
	pushErr error
	kicked  bool
}

func newFakeLiveSession() *fakeLiveSession {
	return &fakeLiveSession{id: uuid.New()}
}

func (f *fakeLiveSession) ID() uuid.UUID { return f.id }

func (f *fakeLiveSession) Push(resp *protocol.Response) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, pushCall{resp: resp})
	return nil
}

func (f *fakeLiveSession) Kick() { f.kicked = true }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}

func (nopLogger) Info(context.Context, string, ...any) {}

func (nopLogger) Warn(context.Context, string, ...any) {}

func (nopLogger) Error(context.Context, string, ...any) {}

func (l nopLogger) With(...any) logging.Logger { return l }
