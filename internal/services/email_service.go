package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Beej126/gMaelstrom-sub000/internal/cache"
	"github.com/Beej126/gMaelstrom-sub000/internal/gmail"
	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
)

// EmailServiceImpl implements EmailService
type EmailServiceImpl struct {
	client MessageModifier
	cache  *cache.MessageCache
	logger logging.Logger
}

// NewEmailService creates a new email service
func NewEmailService(client MessageModifier, msgCache *cache.MessageCache, logger logging.Logger) *EmailServiceImpl {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EmailServiceImpl{
		client: client,
		cache:  msgCache,
		logger: logger,
	}
}

// MarkAsRead removes the unread marker remotely, then reconciles the cached
// copy so the list view reflects the change without a refetch.
func (s *EmailServiceImpl) MarkAsRead(ctx context.Context, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("messageID cannot be empty: %w", ErrInvalidMessageID)
	}
	if err := s.client.MarkAsRead(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	s.patchCachedUnread(messageID, false)
	return nil
}

// MarkAsUnread restores the unread marker remotely, then reconciles the
// cached copy.
func (s *EmailServiceImpl) MarkAsUnread(ctx context.Context, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("messageID cannot be empty: %w", ErrInvalidMessageID)
	}
	if err := s.client.MarkAsUnread(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark as unread: %w", err)
	}
	s.patchCachedUnread(messageID, true)
	return nil
}

// BulkMarkAsRead marks multiple messages as read, collecting per-message
// failures rather than aborting on the first one.
func (s *EmailServiceImpl) BulkMarkAsRead(ctx context.Context, messageIDs []string) error {
	return s.bulkMark(ctx, messageIDs, false)
}

// BulkMarkAsUnread marks multiple messages as unread.
func (s *EmailServiceImpl) BulkMarkAsUnread(ctx context.Context, messageIDs []string) error {
	return s.bulkMark(ctx, messageIDs, true)
}

func (s *EmailServiceImpl) bulkMark(ctx context.Context, messageIDs []string, unread bool) error {
	if len(messageIDs) == 0 {
		return fmt.Errorf("no message IDs provided: %w", ErrInvalidInput)
	}

	var errs []string
	for _, id := range messageIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if unread {
			err = s.MarkAsUnread(ctx, id)
		} else {
			err = s.MarkAsRead(ctx, id)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("bulk mark errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetMessage returns the cached record for the given ID, if present.
func (s *EmailServiceImpl) GetMessage(id string) (*gmail.Message, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.FindByID(id)
}

// patchCachedUnread swaps in an updated copy of the cached message with the
// unread state flipped. Cached records are shared with readers, so the
// stored pointer is never mutated in place.
func (s *EmailServiceImpl) patchCachedUnread(messageID string, unread bool) {
	if s.cache == nil {
		return
	}
	current, ok := s.cache.FindByID(messageID)
	if !ok {
		s.logger.Debug("message not cached, skipping reconcile", "id", messageID)
		return
	}
	next := *current
	next.Unread = unread
	if unread {
		if !next.HasLabel(gmail.UnreadLabelID) {
			next.LabelIDs = append(append([]string(nil), next.LabelIDs...), gmail.UnreadLabelID)
		}
	} else {
		next.LabelIDs = gmail.WithoutLabel(next.LabelIDs, gmail.UnreadLabelID)
	}
	s.cache.UpdateItem(&next)
}
