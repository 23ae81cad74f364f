package services

import (
	"context"

	"github.com/Beej126/gMaelstrom-sub000/internal/gmail"
	gmail_v1 "google.golang.org/api/gmail/v1"
)

// LabelAPI is the slice of the Gmail client the label service depends on.
type LabelAPI interface {
	ListLabels(ctx context.Context) ([]*gmail_v1.Label, error)
	PatchLabelVisibility(ctx context.Context, labelID string, visible bool) error
}

// MessageModifier is the slice of the Gmail client the email service depends on.
type MessageModifier interface {
	MarkAsRead(ctx context.Context, messageID string) error
	MarkAsUnread(ctx context.Context, messageID string) error
}

// OverrideStore persists local visibility choices for system labels, which
// the Gmail API does not allow patching remotely.
type OverrideStore interface {
	SetLabelVisibilityOverride(ctx context.Context, labelID string, visible bool) error
	LabelVisibilityOverrides(ctx context.Context) (map[string]bool, error)
}

// LabelService handles label operations
type LabelService interface {
	LoadLabels(ctx context.Context) error
	Labels() []Label
	Label(id string) (Label, bool)
	SetLabelVisibility(ctx context.Context, labelID string, visible bool) error
	SetHiddenShown(shown bool) bool
	LabelsVersion() uint64
}

// EmailService handles email business logic
type EmailService interface {
	MarkAsRead(ctx context.Context, messageID string) error
	MarkAsUnread(ctx context.Context, messageID string) error
	BulkMarkAsRead(ctx context.Context, messageIDs []string) error
	BulkMarkAsUnread(ctx context.Context, messageIDs []string) error
	GetMessage(id string) (*gmail.Message, bool)
}
