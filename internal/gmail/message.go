package gmail

import (
	"net/mail"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// UnreadLabelID is the system label the remote store uses for the unread flag.
const UnreadLabelID = "UNREAD"

// Message is a fully hydrated mailbox item. Instances are immutable once
// cached except for label patches applied through the owning services.
type Message struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	Subject      string
	From         string
	To           string
	Date         time.Time
	Unread       bool
	SizeEstimate int64
}

// FromAPI converts a raw API message into the domain record, extracting the
// header-derived attributes the rest of the core works with.
func FromAPI(m *gmailv1.Message) *Message {
	msg := &Message{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		LabelIDs:     m.LabelIds,
		Snippet:      m.Snippet,
		Subject:      extractHeader(m, "Subject"),
		From:         extractHeader(m, "From"),
		To:           extractHeader(m, "To"),
		Date:         extractDate(m),
		SizeEstimate: m.SizeEstimate,
	}
	for _, id := range m.LabelIds {
		if id == UnreadLabelID {
			msg.Unread = true
			break
		}
	}
	return msg
}

// HasLabel reports whether the message carries the given label ID.
func (m *Message) HasLabel(labelID string) bool {
	for _, id := range m.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// WithoutLabel returns a copy of the label set with the given ID removed.
func WithoutLabel(labelIDs []string, labelID string) []string {
	out := make([]string, 0, len(labelIDs))
	for _, id := range labelIDs {
		if id != labelID {
			out = append(out, id)
		}
	}
	return out
}

func extractHeader(m *gmailv1.Message, name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func extractDate(m *gmailv1.Message) time.Time {
	if m == nil {
		return time.Time{}
	}
	if m.InternalDate > 0 {
		return time.UnixMilli(m.InternalDate)
	}
	if raw := extractHeader(m, "Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
