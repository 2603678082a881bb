package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo NotificationRepository
	log  zerolog.Logger
}

func NewService(repo NotificationRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Push appends a batch of notifications. Delivery is at-most-once: a
// storage failure is logged and returned, but callers in the workflow
// path treat it as non-fatal so a case mutation never rolls back over a
// notification.
func (s *Service) Push(ctx context.Context, batch []*Notification) error {
	if len(batch) == 0 {
		return nil
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		s.log.Debug().Err(err).Int("count", len(batch)).Msg("notification push failed")
		return err
	}
	for _, n := range batch {
		s.log.Debug().
			Str("recipient_id", n.RecipientID).
			Str("type", n.Type).
			Str("context_type", n.ContextType).
			Str("context_id", n.ContextID).
			Msg("notification pushed")
	}
	return nil
}

func (s *Service) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

// MarkRead flips one notification to read. Only the recipient may do
// it; anyone else gets a not-found rather than a hint the row exists.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, actorID string) (*Notification, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != actorID {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if n.Read {
		return n, nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}
