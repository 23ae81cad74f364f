package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/Beej126/gMaelstrom-sub000/internal/collection"
	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
)

// LabelKind distinguishes Gmail system labels from user-created ones. The
// two kinds take different visibility paths: user labels are patched on the
// server, system labels only get a local override.
type LabelKind int

const (
	LabelKindSystem LabelKind = iota
	LabelKindUser
)

// Label is the domain view of a Gmail label.
type Label struct {
	ID          string
	Name        string
	DisplayName string
	Kind        LabelKind
	Visible     bool
}

// LabelCollection orders labels by kind then display name.
type LabelCollection = collection.Collection[string, Label, string]

// LabelServiceImpl implements LabelService
type LabelServiceImpl struct {
	client    LabelAPI
	overrides OverrideStore
	logger    logging.Logger

	mu     sync.Mutex
	labels *LabelCollection
}

// NewLabelService creates a new label service. overrides may be nil, in
// which case system-label visibility always follows the remote listing.
func NewLabelService(client LabelAPI, overrides OverrideStore, logger logging.Logger) *LabelServiceImpl {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LabelServiceImpl{
		client:    client,
		overrides: overrides,
		logger:    logger,
		labels:    newLabelCollection(),
	}
}

func newLabelCollection() *LabelCollection {
	return collection.New(collection.Config[string, Label, string]{
		SortKey: labelSortKey,
		Filter:  func(l Label) bool { return l.Visible },
	})
}

// labelSortKey groups system labels ahead of user labels, each block
// alphabetical by display name with the ID as tie-break via the collection.
func labelSortKey(l Label) string {
	rank := "1"
	if l.Kind == LabelKindSystem {
		rank = "0"
	}
	return rank + ":" + strings.ToLower(l.DisplayName)
}

// LoadLabels fetches the label listing and rebuilds the collection. Local
// visibility overrides win over the remote labelListVisibility for system
// labels.
func (s *LabelServiceImpl) LoadLabels(ctx context.Context) error {
	remote, err := s.client.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}

	overrides := map[string]bool{}
	if s.overrides != nil {
		overrides, err = s.overrides.LabelVisibilityOverrides(ctx)
		if err != nil {
			return fmt.Errorf("failed to load visibility overrides: %w", err)
		}
	}

	entries := make(map[string]Label, len(remote))
	for _, rl := range remote {
		if rl == nil || rl.Id == "" {
			continue
		}
		kind := LabelKindUser
		if rl.Type == "system" {
			kind = LabelKindSystem
		}
		visible := rl.LabelListVisibility != "labelHide"
		if kind == LabelKindSystem {
			if override, ok := overrides[rl.Id]; ok {
				visible = override
			}
		}
		entries[rl.Id] = Label{
			ID:          rl.Id,
			Name:        rl.Name,
			DisplayName: displayNameFor(kind, rl.Id, rl.Name),
			Kind:        kind,
			Visible:     visible,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels.SetEntries(entries)
	s.labels = s.labels.Bump()
	s.logger.Debug("labels loaded", "count", len(entries))
	return nil
}

// Labels returns the current sorted, visibility-filtered label view.
func (s *LabelServiceImpl) Labels() []Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels.SortedFiltered()
}

// Label looks up a single label by ID regardless of visibility.
func (s *LabelServiceImpl) Label(id string) (Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels.Get(id)
}

// LabelsVersion returns the identity stamp of the current label collection.
// Consumers compare stamps to detect change instead of diffing the slice.
func (s *LabelServiceImpl) LabelsVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels.Version()
}

// SetLabelVisibility updates a label's visibility. User labels are patched
// remotely; system labels cannot be patched through the API, so the choice
// is persisted as a local override instead.
func (s *LabelServiceImpl) SetLabelVisibility(ctx context.Context, labelID string, visible bool) error {
	if strings.TrimSpace(labelID) == "" {
		return fmt.Errorf("labelID cannot be empty: %w", ErrInvalidLabelID)
	}

	s.mu.Lock()
	label, ok := s.labels.Get(labelID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("label %s: %w", labelID, ErrLabelNotFound)
	}
	if label.Visible == visible {
		return nil
	}

	switch label.Kind {
	case LabelKindUser:
		if err := s.client.PatchLabelVisibility(ctx, labelID, visible); err != nil {
			return fmt.Errorf("failed to patch label visibility: %w", err)
		}
	case LabelKindSystem:
		if s.overrides == nil {
			return fmt.Errorf("system label visibility requires a session store: %w", ErrServiceUnavailable)
		}
		if err := s.overrides.SetLabelVisibilityOverride(ctx, labelID, visible); err != nil {
			return fmt.Errorf("failed to store visibility override: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels.Patch(labelID, func(l Label) Label {
		l.Visible = visible
		return l
	})
	s.labels = s.labels.Bump()
	return nil
}

// SetHiddenShown toggles whether hidden labels appear in the sorted view.
// It reports whether the view actually changed.
func (s *LabelServiceImpl) SetHiddenShown(shown bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.labels.SetFilterEnabled(!shown)
	if changed {
		s.labels = s.labels.Bump()
	}
	return changed
}

// displayNameFor derives the human-facing name for a label. Category system
// labels like CATEGORY_SOCIAL render as "Social"; other system labels get a
// title-cased form of their ID; nested user labels keep just the last path
// segment of their given name.
func displayNameFor(kind LabelKind, id, name string) string {
	if kind == LabelKindUser {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			return name[i+1:]
		}
		return name
	}
	base := strings.TrimPrefix(id, "CATEGORY_")
	return titleCase(base)
}

func titleCase(id string) string {
	words := strings.Split(strings.ToLower(id), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
