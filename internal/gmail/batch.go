package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
)

const (
	// batchEndpoint is the multiplexed detail endpoint. One POST carries up
	// to detailBatchSize sub-requests as a multipart/mixed body.
	batchEndpoint = "https://gmail.googleapis.com/batch/gmail/v1"

	// detailBatchSize is the number of sub-requests per batch call.
	detailBatchSize = 10

	// detailBatchDelay paces successive batch calls. The remote API rate
	// limit is per-second, so this is explicit backpressure rather than
	// reacting to 429s after the fact.
	detailBatchDelay = 300 * time.Millisecond
)

// ErrRateLimited is returned when the remote API reports a rate-limit
// rejection inside a batch response. The whole batch is aborted; no partial
// results are returned.
var ErrRateLimited = errors.New("rate limited by remote API")

// FetchMessageDetails retrieves full records for the given message IDs in
// rate-limited batches. Result order is not guaranteed to match input order;
// callers must key results by Message.ID.
func (c *Client) FetchMessageDetails(ctx context.Context, ids []string) ([]*Message, error) {
	if len(ids) == 0 {
		return []*Message{}, nil
	}
	out := make([]*Message, 0, len(ids))
	for start := 0; start < len(ids); start += c.batchSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("batch pacing: %w", err)
		}
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		msgs, err := c.fetchDetailBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	return out, nil
}

// fetchDetailBatch issues one multiplexed request. A 401 on the outer call
// forces a credential refresh and retries exactly once.
func (c *Client) fetchDetailBatch(ctx context.Context, ids []string) ([]*Message, error) {
	token, err := c.tokens.AccessToken(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("batch credential: %w", err)
	}
	resp, err := c.postBatch(ctx, token, ids)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		c.logger.Debug("batch request unauthorized, refreshing credential")
		token, err = c.tokens.AccessToken(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("batch credential refresh: %w", err)
		}
		resp, err = c.postBatch(ctx, token, ids)
		if err != nil {
			return nil, err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("batch request failed: %s", resp.Status)
	}

	boundary, err := batchBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read batch response: %w", err)
	}
	return c.parseBatchBody(string(body), boundary)
}

func (c *Client) postBatch(ctx context.Context, token string, ids []string) (*http.Response, error) {
	boundary := fmt.Sprintf("batch_%d", time.Now().UnixNano())
	var body bytes.Buffer
	for _, id := range ids {
		if id == "" {
			continue
		}
		fmt.Fprintf(&body, "--%s\r\n", boundary)
		body.WriteString("Content-Type: application/http\r\n")
		body.WriteString("Content-Transfer-Encoding: binary\r\n\r\n")
		fmt.Fprintf(&body, "GET /gmail/v1/users/me/messages/%s?format=metadata HTTP/1.1\r\n\r\n", id)
	}
	fmt.Fprintf(&body, "--%s--\r\n", boundary)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.batchURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/mixed; boundary="+boundary)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch request: %w", err)
	}
	return resp, nil
}

func batchBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("unexpected batch content type: %q", contentType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", fmt.Errorf("batch response missing boundary")
	}
	return boundary, nil
}

// parseBatchBody splits the multipart response on the boundary marker and
// extracts every JSON object from each part. A 429 embedded anywhere aborts
// the whole batch; malformed fragments are logged and skipped.
func (c *Client) parseBatchBody(body, boundary string) ([]*Message, error) {
	parts := strings.Split(body, "--"+boundary)
	var out []*Message
	for _, part := range parts {
		part = strings.TrimSpace(strings.TrimPrefix(part, "--"))
		if part == "" {
			continue
		}
		if status, ok := embeddedStatus(part); ok && status == http.StatusTooManyRequests {
			return nil, ErrRateLimited
		}
		for _, fragment := range scanJSONObjects(part) {
			var raw gmailv1.Message
			if err := json.Unmarshal([]byte(fragment), &raw); err != nil {
				c.logger.Warn("skipping malformed batch fragment", "error", err)
				continue
			}
			if raw.Id == "" {
				continue
			}
			out = append(out, FromAPI(&raw))
		}
	}
	return out, nil
}

// embeddedStatus finds the HTTP status line of a batch response part.
func embeddedStatus(part string) (int, bool) {
	for _, line := range strings.Split(part, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "HTTP/") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		return code, true
	}
	return 0, false
}
