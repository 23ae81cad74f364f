// Package gmail is the transport layer over the remote message store's REST
// API. List, label, and modify operations go through the generated API
// client; batched detail retrieval assembles the multiplexed multipart
// request by hand because the generated client does not expose the batch
// endpoint.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
)

const user = "me"

// Label visibility values understood by the remote API.
const (
	LabelVisibilityShow = "labelShow"
	LabelVisibilityHide = "labelHide"
)

// TokenProvider supplies bearer tokens for raw endpoint calls. forceRefresh
// discards any cached credential and performs a fresh acquisition.
type TokenProvider interface {
	AccessToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Client wraps the generated API service and the raw batch transport.
type Client struct {
	svc        *gmailv1.Service
	httpClient *http.Client
	tokens     TokenProvider
	logger     logging.Logger

	batchURL  string
	batchSize int
	limiter   *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithBatchURL overrides the batch endpoint, used by tests.
func WithBatchURL(url string) Option {
	return func(c *Client) { c.batchURL = url }
}

// WithBatchSize overrides the number of sub-requests per batch call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBatchDelay overrides the pacing interval between batch calls.
func WithBatchDelay(interval rate.Limit) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(interval, 1) }
}

// WithHTTPClient overrides the raw transport used for the batch endpoint.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a client. svc carries its own authenticated transport;
// tokens is consulted for the raw batch endpoint.
func NewClient(svc *gmailv1.Service, tokens TokenProvider, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		svc:        svc,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		logger:     logger,
		batchURL:   batchEndpoint,
		batchSize:  detailBatchSize,
		limiter:    rate.NewLimiter(rate.Every(detailBatchDelay), 1),
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMessagesPage returns one page of minimal message stubs for the given
// label scope, the continuation token for the following page (empty when the
// collection is exhausted), and the server's estimate of the total count.
func (c *Client) ListMessagesPage(ctx context.Context, labelID, pageToken string, pageSize int64) ([]*gmailv1.Message, string, int64, error) {
	call := c.svc.Users.Messages.List(user).Context(ctx)
	if labelID != "" {
		call = call.LabelIds(labelID)
	}
	if pageSize > 0 {
		call = call.MaxResults(pageSize)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Do()
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return res.Messages, res.NextPageToken, res.ResultSizeEstimate, nil
}

// ListLabels returns every label defined on the account.
func (c *Client) ListLabels(ctx context.Context) ([]*gmailv1.Label, error) {
	res, err := c.svc.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return res.Labels, nil
}

// PatchLabelVisibility updates the label-list visibility of a label. The
// remote API only accepts this for user-defined labels.
func (c *Client) PatchLabelVisibility(ctx context.Context, labelID string, visible bool) error {
	if strings.TrimSpace(labelID) == "" {
		return fmt.Errorf("labelID cannot be empty")
	}
	visibility := LabelVisibilityShow
	if !visible {
		visibility = LabelVisibilityHide
	}
	_, err := c.svc.Users.Labels.Patch(user, labelID, &gmailv1.Label{
		LabelListVisibility: visibility,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to patch label %s: %w", labelID, err)
	}
	return nil
}

// ModifyMessage adds and removes labels on a message.
func (c *Client) ModifyMessage(ctx context.Context, messageID string, addLabelIDs, removeLabelIDs []string) error {
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("messageID cannot be empty")
	}
	_, err := c.svc.Users.Messages.Modify(user, messageID, &gmailv1.ModifyMessageRequest{
		AddLabelIds:    addLabelIDs,
		RemoveLabelIds: removeLabelIDs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to modify message %s: %w", messageID, err)
	}
	return nil
}

// MarkAsRead clears the unread flag on a message.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	return c.ModifyMessage(ctx, messageID, nil, []string{UnreadLabelID})
}

// MarkAsUnread sets the unread flag on a message.
func (c *Client) MarkAsUnread(ctx context.Context, messageID string) error {
	return c.ModifyMessage(ctx, messageID, []string{UnreadLabelID}, nil)
}

// IsUnauthorized reports whether err is a 401 from the remote API.
func IsUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

// IsRateLimited reports whether err is a rate-limit rejection, either the
// batch sentinel or a 429 from the generated client.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
