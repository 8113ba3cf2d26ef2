// Package session implements the per-connection protocol state machine: it
// reads framed requests off one client connection, enforces the
// authentication gate, dispatches to the services and writes replies and
// pushed events back. One goroutine owns the read side; pushes from other
// sessions share the write side through a mutex.
package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/protocol"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
	"github.com/dmitrijs2005/chatrelay/internal/server/registry"
)

// Client-facing error strings. These are part of the protocol surface and
// must stay stable.
const (
	errNotAuthenticated = "not authenticated"
	errMissingFields    = "missing fields"
	errUserExists       = "user exists"
	errNoSuchUser       = "no such user"
	errWrongPassword    = "wrong password"
	errUnknownCommand   = "unknown command"
	errInvalidJSON      = "invalid json"
	errStorage          = "storage error"
	errFrameTooLarge    = "frame too large"
	errGroupExists      = "group exists"
	errNoSuchGroup      = "no such group"
	errNoSuchGroupOrUsr = "no such group or user"
)

// Users authenticates accounts.
type Users interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
}

// Messages routes and queries messages.
type Messages interface {
	Send(ctx context.Context, from, to, content string) error
	SendGroup(ctx context.Context, from, group, content string) error
	DrainUndelivered(ctx context.Context, username string, push func(*protocol.Response) error) error
	History(ctx context.Context, username string, limit int) ([]*models.Message, error)
	Stats(ctx context.Context, username string) (string, error)
}

// Groups manages named groups.
type Groups interface {
	Create(ctx context.Context, name string) error
	Join(ctx context.Context, group, username string) error
	Members(ctx context.Context, group string) ([]string, error)
}

// Session drives one client connection from accept to close.
type Session struct {
	id     uuid.UUID
	conn   net.Conn
	reader *bufio.Reader
	logger logging.Logger

	users    Users
	messages Messages
	groups   Groups
	registry *registry.Registry

	writeMu sync.Mutex

	// username is non-empty once login succeeded. Only the read loop
	// goroutine touches it.
	username string
}

func New(conn net.Conn, l logging.Logger, users Users, messages Messages, groups Groups, reg *registry.Registry) *Session {
	return &Session{
		id:       uuid.New(),
		conn:     conn,
		reader:   bufio.NewReader(conn),
		logger:   l.With("module", "session", "remote", conn.RemoteAddr().String()),
		users:    users,
		messages: messages,
		groups:   groups,
		registry: reg,
	}
}

// ID identifies this session in the registry.
func (s *Session) ID() uuid.UUID { return s.id }

// pushWriteTimeout bounds how long a cross-session push may block on the
// receiver's connection. A receiver that stops reading fails the push
// instead of stalling the sender; the stored row keeps the message safe.
var pushWriteTimeout = 10 * time.Second

// Push writes an asynchronous event frame to the client. Safe to call from
// other sessions' goroutines.
func (s *Session) Push(resp *protocol.Response) error {
	payload, err := resp.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	defer s.conn.SetWriteDeadline(time.Time{})
	return protocol.WriteFrame(s.conn, payload)
}

// Kick closes the connection out from under the read loop. Used when a
// newer login supersedes this session.
func (s *Session) Kick() {
	s.conn.Close()
}

func (s *Session) write(resp *protocol.Response) error {
	payload, err := resp.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteFrame(s.conn, payload)
}

// Run reads frames until the client disconnects, the connection breaks or
// ctx is canceled. It always leaves the registry clean and the connection
// closed.
func (s *Session) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	defer func() {
		if s.username != "" {
			s.registry.Unregister(s.username, s)
		}
		s.conn.Close()
		s.logger.Debug(ctx, "session closed", "username", s.username)
	}()

	s.logger.Debug(ctx, "session started")

	for {
		payload, err := protocol.ReadFrame(s.reader)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				if werr := s.write(protocol.Errorf(errFrameTooLarge)); werr != nil {
					return
				}
				continue
			}
			return
		}

		if err := s.handle(ctx, payload); err != nil {
			return
		}
	}
}

// handle processes one frame and writes exactly one reply. The returned
// error is only ever a write failure; protocol-level errors become error
// replies and keep the session alive.
func (s *Session) handle(ctx context.Context, payload []byte) error {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		return s.write(protocol.Errorf(errInvalidJSON))
	}

	if req.Type == protocol.KindPing {
		return s.write(&protocol.Response{Type: protocol.TypePong})
	}

	if s.username == "" && req.Type != protocol.KindRegister && req.Type != protocol.KindLogin {
		return s.write(protocol.Errorf(errNotAuthenticated))
	}

	switch req.Type {
	case protocol.KindRegister:
		return s.handleRegister(ctx, req)
	case protocol.KindLogin:
		return s.handleLogin(ctx, req)
	case protocol.KindSend:
		return s.handleSend(ctx, req)
	case protocol.KindSendGroup:
		return s.handleSendGroup(ctx, req)
	case protocol.KindHistory:
		return s.handleHistory(ctx, req)
	case protocol.KindCreateGroup:
		return s.handleCreateGroup(ctx, req)
	case protocol.KindJoinGroup:
		return s.handleJoinGroup(ctx, req)
	case protocol.KindGroupMembers:
		return s.handleGroupMembers(ctx, req)
	case protocol.KindStats:
		return s.handleStats(ctx)
	default:
		return s.write(protocol.Errorf(errUnknownCommand))
	}
}

// handleRegister creates the account but does not authenticate the session;
// the client still has to log in.
func (s *Session) handleRegister(ctx context.Context, req *protocol.Request) error {
	if req.Username == "" || req.Password == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	_, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return s.write(protocol.Errorf(errUserExists))
		}
		s.logger.Error(ctx, "register failed", "username", req.Username, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	s.logger.Info(ctx, "user registered", "username", req.Username)
	return s.write(protocol.OK())
}

func (s *Session) handleLogin(ctx context.Context, req *protocol.Request) error {
	if req.Username == "" || req.Password == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	_, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return s.write(protocol.Errorf(errNoSuchUser))
		case errors.Is(err, common.ErrorUnauthorized):
			return s.write(protocol.Errorf(errWrongPassword))
		default:
			s.logger.Error(ctx, "login failed", "username", req.Username, "error", err)
			return s.write(protocol.Errorf(errStorage))
		}
	}

	// Re-login under a different name releases the old identity first.
	if s.username != "" && s.username != req.Username {
		s.registry.Unregister(s.username, s)
	}
	s.username = req.Username

	if prev := s.registry.Register(s.username, s); prev != nil && prev.ID() != s.id {
		prev.Kick()
	}

	s.logger.Info(ctx, "user logged in", "username", s.username)

	// Queued messages are flushed before the ok so the client sees them in
	// their original order.
	err = s.messages.DrainUndelivered(ctx, s.username, s.write)
	if err != nil {
		s.logger.Error(ctx, "drain failed", "username", s.username, "error", err)
		// A storage failure gets an error reply and the session stays up;
		// the queue replays on the next login. Anything else is a write
		// failure on this connection, so tear down.
		if errors.Is(err, common.ErrorInternal) {
			return s.write(protocol.Errorf(errStorage))
		}
		return err
	}

	return s.write(protocol.OK())
}

func (s *Session) handleSend(ctx context.Context, req *protocol.Request) error {
	if req.To == "" || req.Message == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	err := s.messages.Send(ctx, s.username, req.To, req.Message)
	if err != nil {
		if errors.Is(err, common.ErrorSelfMessage) {
			return s.write(protocol.Errorf(common.ErrorSelfMessage.Error()))
		}
		s.logger.Error(ctx, "send failed", "from", s.username, "to", req.To, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(protocol.OK())
}

func (s *Session) handleSendGroup(ctx context.Context, req *protocol.Request) error {
	if req.Group == "" || req.Message == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	err := s.messages.SendGroup(ctx, s.username, req.Group, req.Message)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.write(protocol.Errorf(errNoSuchGroup))
		}
		s.logger.Error(ctx, "group send failed", "from", s.username, "group", req.Group, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(protocol.OK())
}

func (s *Session) handleHistory(ctx context.Context, req *protocol.Request) error {
	msgs, err := s.messages.History(ctx, s.username, req.Limit)
	if err != nil {
		s.logger.Error(ctx, "history failed", "username", s.username, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	entries := make([]protocol.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, protocol.HistoryEntry{
			From:    m.Sender,
			To:      m.Receiver,
			Message: m.Content,
			TS:      protocol.FormatTime(m.SentAt),
		})
	}

	return s.write(&protocol.Response{Type: protocol.TypeHistory, Messages: entries})
}

func (s *Session) handleCreateGroup(ctx context.Context, req *protocol.Request) error {
	if req.Group == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	err := s.groups.Create(ctx, req.Group)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return s.write(protocol.Errorf(errGroupExists))
		}
		s.logger.Error(ctx, "group create failed", "group", req.Group, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(protocol.OK())
}

func (s *Session) handleJoinGroup(ctx context.Context, req *protocol.Request) error {
	if req.Group == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	err := s.groups.Join(ctx, req.Group, s.username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.write(protocol.Errorf(errNoSuchGroupOrUsr))
		}
		s.logger.Error(ctx, "group join failed", "group", req.Group, "username", s.username, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(protocol.OK())
}

func (s *Session) handleGroupMembers(ctx context.Context, req *protocol.Request) error {
	if req.Group == "" {
		return s.write(protocol.Errorf(errMissingFields))
	}

	members, err := s.groups.Members(ctx, req.Group)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.write(protocol.Errorf(errNoSuchGroup))
		}
		s.logger.Error(ctx, "group members failed", "group", req.Group, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(&protocol.Response{
		Type:    protocol.TypeGroupMembers,
		Group:   req.Group,
		Members: members,
	})
}

func (s *Session) handleStats(ctx context.Context) error {
	text, err := s.messages.Stats(ctx, s.username)
	if err != nil {
		s.logger.Error(ctx, "stats failed", "username", s.username, "error", err)
		return s.write(protocol.Errorf(errStorage))
	}

	return s.write(&protocol.Response{Type: protocol.TypeStats, Data: text})
}
