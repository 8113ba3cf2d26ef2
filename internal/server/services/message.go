package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatrelay/internal/common"
	"github.com/dmitrijs2005/chatrelay/internal/dbx"
	"github.com/dmitrijs2005/chatrelay/internal/logging"
	"github.com/dmitrijs2005/chatrelay/internal/protocol"
	"github.com/dmitrijs2005/chatrelay/internal/server/config"
	"github.com/dmitrijs2005/chatrelay/internal/server/models"
	"github.com/dmitrijs2005/chatrelay/internal/server/registry"
	"github.com/dmitrijs2005/chatrelay/internal/server/repositories/repomanager"
)

// MessageService is the router: it persists every message and additionally
// pushes a live event when the receiver has a registered session. Delivery
// of the live push is fire-and-forget; the stored row with delivered=false
// is what guarantees the message eventually reaches an offline user.
type MessageService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	registry     *registry.Registry
	logger       logging.Logger
	historyLimit int
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, reg *registry.Registry, l logging.Logger, cfg *config.Config) *MessageService {
	return &MessageService{
		db:           db,
		repomanager:  m,
		registry:     reg,
		logger:       l.With("module", "message_service"),
		historyLimit: cfg.HistoryLimit,
	}
}

// Send persists one direct message and live-pushes it if the receiver is
// online. Sending to oneself is rejected; sending to an unknown username is
// allowed and simply queues the row forever (the original broker behaves
// the same way).
func (s *MessageService) Send(ctx context.Context, from, to, content string) error {
	if from == to {
		return common.ErrorSelfMessage
	}

	repo := s.repomanager.Messages(s.db)
	msg, err := repo.Save(ctx, from, to, content)
	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}

	s.pushLive(ctx, msg)
	return nil
}

// SendGroup fans a message out to every member of the group except the
// sender: one stored row per recipient, written in a single transaction,
// then a live push per online recipient. An unknown group yields
// common.ErrorNotFound.
func (s *MessageService) SendGroup(ctx context.Context, from, group, content string) error {
	members, err := s.repomanager.Groups(s.db).Members(ctx, group)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error resolving group: %w", err)
	}

	var saved []*models.Message
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Messages(tx)
		for _, member := range members {
			if member == from {
				continue
			}
			msg, err := repo.Save(ctx, from, member, content)
			if err != nil {
				return err
			}
			saved = append(saved, msg)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error saving group message: %w", err)
	}

	for _, msg := range saved {
		s.pushLive(ctx, msg)
	}
	return nil
}

// DrainUndelivered pushes every queued message for username through push
// (oldest-first) and then marks them delivered. If a push fails the sweep
// is aborted without marking, so the queue is replayed on the next login.
// Storage failures are wrapped with common.ErrorInternal so the caller can
// tell them apart from a dead client transport.
func (s *MessageService) DrainUndelivered(ctx context.Context, username string, push func(*protocol.Response) error) error {
	repo := s.repomanager.Messages(s.db)

	pending, err := repo.Undelivered(ctx, username)
	if err != nil {
		return fmt.Errorf("error loading undelivered messages: %w: %w", common.ErrorInternal, err)
	}
	if len(pending) == 0 {
		return nil
	}

	for _, m := range pending {
		if err := push(event(m)); err != nil {
			return fmt.Errorf("error pushing queued message: %w", err)
		}
	}

	if err := repo.MarkDelivered(ctx, username); err != nil {
		return fmt.Errorf("error marking messages delivered: %w: %w", common.ErrorInternal, err)
	}
	return nil
}

// History returns the caller's most recent messages, oldest-first. A
// non-positive limit falls back to the configured default.
func (s *MessageService) History(ctx context.Context, username string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	msgs, err := s.repomanager.Messages(s.db).History(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}
	return msgs, nil
}

// Stats renders the caller's aggregate outbound counters as the text
// summary the protocol exposes.
func (s *MessageService) Stats(ctx context.Context, username string) (string, error) {
	stats, err := s.repomanager.Messages(s.db).Stats(ctx, username)
	if err != nil {
		return "", fmt.Errorf("error loading stats: %w", err)
	}
	if stats.LastSent.IsZero() {
		return fmt.Sprintf("Sent: %d, Last: never", stats.SentCount), nil
	}
	return fmt.Sprintf("Sent: %d, Last: %s", stats.SentCount, protocol.FormatTime(stats.LastSent)), nil
}

func (s *MessageService) pushLive(ctx context.Context, msg *models.Message) {
	sess, ok := s.registry.Lookup(msg.Receiver)
	if !ok {
		return
	}
	if err := sess.Push(event(msg)); err != nil {
		// Fire-and-forget: the receiver's own read loop notices a dead
		// connection, and the stored row keeps the message safe.
		s.logger.Debug(ctx, "live push failed", "receiver", msg.Receiver, "error", err)
	}
}

func event(m *models.Message) *protocol.Response {
	return &protocol.Response{
		Type:    protocol.TypeMessage,
		From:    m.Sender,
		Message: m.Content,
		TS:      protocol.FormatTime(m.SentAt),
	}
}
