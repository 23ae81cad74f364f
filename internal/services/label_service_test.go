package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail_v1 "google.golang.org/api/gmail/v1"
)

type fakeLabelAPI struct {
	labels     []*gmail_v1.Label
	listErr    error
	patchErr   error
	patchCalls []struct {
		LabelID string
		Visible bool
	}
}

func (f *fakeLabelAPI) ListLabels(ctx context.Context) ([]*gmail_v1.Label, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.labels, nil
}

func (f *fakeLabelAPI) PatchLabelVisibility(ctx context.Context, labelID string, visible bool) error {
	f.patchCalls = append(f.patchCalls, struct {
		LabelID string
		Visible bool
	}{labelID, visible})
	return f.patchErr
}

type fakeOverrideStore struct {
	overrides map[string]bool
	setErr    error
}

func (f *fakeOverrideStore) SetLabelVisibilityOverride(ctx context.Context, labelID string, visible bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.overrides == nil {
		f.overrides = make(map[string]bool)
	}
	f.overrides[labelID] = visible
	return nil
}

func (f *fakeOverrideStore) LabelVisibilityOverrides(ctx context.Context) (map[string]bool, error) {
	return f.overrides, nil
}

func standardLabels() []*gmail_v1.Label {
	return []*gmail_v1.Label{
		{Id: "INBOX", Name: "INBOX", Type: "system", LabelListVisibility: "labelShow"},
		{Id: "CATEGORY_SOCIAL", Name: "CATEGORY_SOCIAL", Type: "system", LabelListVisibility: "labelHide"},
		{Id: "SPAM", Name: "SPAM", Type: "system", LabelListVisibility: "labelHide"},
		{Id: "Label_7", Name: "work/projects", Type: "user", LabelListVisibility: "labelShow"},
		{Id: "Label_2", Name: "Archive Later", Type: "user", LabelListVisibility: "labelShow"},
	}
}

func TestLabelService_LoadLabels(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)

	require.NoError(t, service.LoadLabels(context.Background()))

	social, ok := service.Label("CATEGORY_SOCIAL")
	require.True(t, ok)
	assert.Equal(t, "Social", social.DisplayName)
	assert.Equal(t, LabelKindSystem, social.Kind)
	assert.False(t, social.Visible)

	work, ok := service.Label("Label_7")
	require.True(t, ok)
	assert.Equal(t, "projects", work.DisplayName)
	assert.Equal(t, LabelKindUser, work.Kind)
	assert.True(t, work.Visible)
}

func TestLabelService_LoadLabels_OverrideWins(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	store := &fakeOverrideStore{overrides: map[string]bool{"SPAM": true, "INBOX": false}}
	service := NewLabelService(api, store, nil)

	require.NoError(t, service.LoadLabels(context.Background()))

	spam, _ := service.Label("SPAM")
	assert.True(t, spam.Visible, "override should flip remote labelHide")
	inbox, _ := service.Label("INBOX")
	assert.False(t, inbox.Visible)
}

func TestLabelService_Labels_SortedAndFiltered(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)
	require.NoError(t, service.LoadLabels(context.Background()))

	var ids []string
	for _, l := range service.Labels() {
		ids = append(ids, l.ID)
	}
	// System labels first, each block alphabetical by display name. Hidden
	// labels (CATEGORY_SOCIAL, SPAM) are filtered out.
	assert.Equal(t, []string{"INBOX", "Label_2", "Label_7"}, ids)
}

func TestLabelService_SetHiddenShown(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)
	require.NoError(t, service.LoadLabels(context.Background()))

	before := service.LabelsVersion()
	assert.True(t, service.SetHiddenShown(true))
	assert.Len(t, service.Labels(), 5)
	assert.NotEqual(t, before, service.LabelsVersion())

	// Already shown, no rebuild and no new version.
	current := service.LabelsVersion()
	assert.False(t, service.SetHiddenShown(true))
	assert.Equal(t, current, service.LabelsVersion())
}

func TestLabelService_SetLabelVisibility_UserLabel(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	store := &fakeOverrideStore{}
	service := NewLabelService(api, store, nil)
	require.NoError(t, service.LoadLabels(context.Background()))

	require.NoError(t, service.SetLabelVisibility(context.Background(), "Label_7", false))

	require.Len(t, api.patchCalls, 1)
	assert.Equal(t, "Label_7", api.patchCalls[0].LabelID)
	assert.False(t, api.patchCalls[0].Visible)
	assert.Empty(t, store.overrides, "user labels must not write local overrides")

	work, _ := service.Label("Label_7")
	assert.False(t, work.Visible)
}

func TestLabelService_SetLabelVisibility_SystemLabel(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	store := &fakeOverrideStore{}
	service := NewLabelService(api, store, nil)
	require.NoError(t, service.LoadLabels(context.Background()))

	require.NoError(t, service.SetLabelVisibility(context.Background(), "CATEGORY_SOCIAL", true))

	assert.Empty(t, api.patchCalls, "system labels must not be patched remotely")
	assert.Equal(t, map[string]bool{"CATEGORY_SOCIAL": true}, store.overrides)

	social, _ := service.Label("CATEGORY_SOCIAL")
	assert.True(t, social.Visible)
}

func TestLabelService_SetLabelVisibility_Errors(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels()}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)
	require.NoError(t, service.LoadLabels(context.Background()))
	ctx := context.Background()

	err := service.SetLabelVisibility(ctx, "  ", false)
	assert.ErrorIs(t, err, ErrInvalidLabelID)

	err = service.SetLabelVisibility(ctx, "nope", false)
	assert.ErrorIs(t, err, ErrLabelNotFound)

	// No-op when the state already matches.
	require.NoError(t, service.SetLabelVisibility(ctx, "Label_7", true))
	assert.Empty(t, api.patchCalls)
}

func TestLabelService_SetLabelVisibility_RemoteFailureKeepsState(t *testing.T) {
	api := &fakeLabelAPI{labels: standardLabels(), patchErr: errors.New("boom")}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)
	require.NoError(t, service.LoadLabels(context.Background()))

	err := service.SetLabelVisibility(context.Background(), "Label_7", false)
	assert.Error(t, err)

	work, _ := service.Label("Label_7")
	assert.True(t, work.Visible, "failed patch must not change local state")
}

func TestLabelService_LoadLabels_ListError(t *testing.T) {
	api := &fakeLabelAPI{listErr: errors.New("network down")}
	service := NewLabelService(api, &fakeOverrideStore{}, nil)

	err := service.LoadLabels(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list labels")
}

func TestDisplayNameFor(t *testing.T) {
	tests := []struct {
		name     string
		kind     LabelKind
		id       string
		given    string
		expected string
	}{
		{"category_social", LabelKindSystem, "CATEGORY_SOCIAL", "CATEGORY_SOCIAL", "Social"},
		{"category_updates", LabelKindSystem, "CATEGORY_UPDATES", "CATEGORY_UPDATES", "Updates"},
		{"inbox", LabelKindSystem, "INBOX", "INBOX", "Inbox"},
		{"multi_word", LabelKindSystem, "CHAT_ARCHIVE", "CHAT_ARCHIVE", "Chat Archive"},
		{"user_label_kept", LabelKindUser, "Label_9", "receipts", "receipts"},
		{"nested_user_label", LabelKindUser, "Label_7", "work/projects", "projects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, displayNameFor(tt.kind, tt.id, tt.given))
		})
	}
}
