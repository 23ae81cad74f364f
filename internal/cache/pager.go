// Package cache maintains the sparse, cursor-chained page cache over the
// remote message collection. The remote list endpoint only exposes
// forward-chained continuation tokens, so random access to page k requires
// walking the chain through every earlier page; this package owns that
// bookkeeping plus the sparse absolute-index buffer of hydrated records.
package cache

import (
	"context"
	"fmt"
	"sync"

	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/Beej126/gMaelstrom-sub000/internal/gmail"
	"github.com/Beej126/gMaelstrom-sub000/internal/logging"
)

// MessageLister fetches one page of minimal stubs for a label scope.
type MessageLister interface {
	ListMessagesPage(ctx context.Context, labelID, pageToken string, pageSize int64) ([]*gmailv1.Message, string, int64, error)
}

// DetailFetcher hydrates full records for a list of message IDs.
type DetailFetcher interface {
	FetchMessageDetails(ctx context.Context, ids []string) ([]*gmail.Message, error)
}

// MessageCache is the paginated collection cache. Slot k of the sparse
// buffer holds the message at absolute position k of the remote collection's
// ordering under the active scope, or nil if never fetched.
type MessageCache struct {
	lister  MessageLister
	fetcher DetailFetcher
	logger  logging.Logger

	mu         sync.Mutex
	scope      string
	items      []*gmail.Message
	pageTokens []string // pageTokens[i] fetches page i; index 0 is always ""
	totalCount int64
	loading    bool
	gen        uint64 // bumped on every scope change / reset
}

// NewMessageCache creates an empty cache scoped to the given label.
func NewMessageCache(lister MessageLister, fetcher DetailFetcher, labelID string, logger logging.Logger) *MessageCache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MessageCache{
		lister:     lister,
		fetcher:    fetcher,
		logger:     logger,
		scope:      labelID,
		pageTokens: []string{""},
	}
}

// Scope returns the active label scope.
func (s *MessageCache) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// TotalCount returns the server's most recent estimate of the collection
// size under the active scope.
func (s *MessageCache) TotalCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCount
}

// Loading reports whether a fetch is in progress.
func (s *MessageCache) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetScope switches the active label filter. The sparse buffer, cursor
// chain, and total count are reset together before any fetch under the new
// scope; continuation tokens from one scope are never valid in another.
// Setting the current scope again is a no-op.
func (s *MessageCache) SetScope(labelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == labelID {
		return
	}
	s.scope = labelID
	s.resetLocked()
}

// FetchPage ensures the window [page*pageSize, page*pageSize+pageSize) is
// populated. A cache hit is a no-op. On a miss the cursor chain is walked
// forward sequentially through any missing intermediate pages, then the
// target page is listed and hydrated through the detail fetcher. On any
// error the cache resets to a consistent empty state; readers of
// GetPageSlice never see partially populated windows from a failed fetch.
func (s *MessageCache) FetchPage(ctx context.Context, page, pageSize int) error {
	if page < 0 || pageSize <= 0 {
		return fmt.Errorf("invalid page window %d/%d", page, pageSize)
	}

	s.mu.Lock()
	if s.hitLocked(page, pageSize) {
		s.loading = false
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	gen := s.gen
	scope := s.scope
	s.mu.Unlock()

	err := s.fill(ctx, gen, scope, page, pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Scope changed while the fetch was in flight; the result has
		// already been discarded by the generation checks in fill.
		return nil
	}
	s.loading = false
	if err != nil {
		s.resetLocked()
		s.logger.Warn("page fetch failed, cache reset", "page", page, "error", err)
		return fmt.Errorf("fetch page %d: %w", page, err)
	}
	return nil
}

// GetPageSlice returns the cached records for the window, in collection
// order, truncated at the total count. A window with any unpopulated slot
// (failed fetch, record lost during hydration) yields an empty slice, never
// a partial one, and never an error.
func (s *MessageCache) GetPageSlice(page, pageSize int) []*gmail.Message {
	if page < 0 || pageSize <= 0 {
		return []*gmail.Message{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := page * pageSize
	end := start + pageSize
	if int64(end) > s.totalCount {
		end = int(s.totalCount)
	}
	out := make([]*gmail.Message, 0, pageSize)
	for i := start; i < end; i++ {
		if i >= len(s.items) || s.items[i] == nil {
			return []*gmail.Message{}
		}
		out = append(out, s.items[i])
	}
	return out
}

// UpdateItem replaces the cached record carrying the same ID, wherever it
// currently sits. The slot position is deliberately left unchanged: it
// reflects original fetch order, not live server order, which is an
// accepted approximation for already-cached pages.
func (s *MessageCache) UpdateItem(msg *gmail.Message) {
	if msg == nil || msg.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item != nil && item.ID == msg.ID {
			s.items[i] = msg
			return
		}
	}
}

// FindByID returns the cached record with the given ID, if present.
func (s *MessageCache) FindByID(id string) (*gmail.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item != nil && item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// hitLocked implements the cache-hit rule: every slot of the window is
// populated and the window does not extend past the known total.
func (s *MessageCache) hitLocked(page, pageSize int) bool {
	start := page * pageSize
	end := start + pageSize
	if int64(end) > s.totalCount {
		return false
	}
	if end > len(s.items) {
		return false
	}
	for i := start; i < end; i++ {
		if s.items[i] == nil {
			return false
		}
	}
	return true
}

func (s *MessageCache) resetLocked() {
	s.items = nil
	s.pageTokens = []string{""}
	s.totalCount = 0
	// Any fetch still in flight belongs to the old generation and will be
	// discarded without touching the flag, so clear it here.
	s.loading = false
	s.gen++
}

// fill walks the cursor chain up to the target page and fetches it. Each
// intermediate fetch must complete before the next begins because every
// continuation token comes from the previous page's response.
func (s *MessageCache) fill(ctx context.Context, gen uint64, scope string, page, pageSize int) error {
	for {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return nil
		}
		chainLen := len(s.pageTokens)
		s.mu.Unlock()

		idx := page
		if chainLen <= page {
			idx = chainLen - 1
		}
		next, err := s.fetchOne(ctx, gen, scope, idx, pageSize)
		if err != nil {
			return err
		}
		if idx == page {
			return nil
		}
		if next == "" {
			// Collection exhausted before reaching the requested page.
			return nil
		}
	}
}

// fetchOne lists and hydrates a single page, writing the results into the
// sparse buffer and extending the cursor chain with the returned
// continuation token.
func (s *MessageCache) fetchOne(ctx context.Context, gen uint64, scope string, idx, pageSize int) (string, error) {
	s.mu.Lock()
	if s.gen != gen || idx >= len(s.pageTokens) {
		s.mu.Unlock()
		return "", nil
	}
	token := s.pageTokens[idx]
	s.mu.Unlock()

	stubs, next, estimate, err := s.lister.ListMessagesPage(ctx, scope, token, int64(pageSize))
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(stubs))
	for _, stub := range stubs {
		if stub.Id != "" {
			ids = append(ids, stub.Id)
		}
	}
	details, err := s.fetcher.FetchMessageDetails(ctx, ids)
	if err != nil {
		return "", err
	}
	// Batch results are unordered; key them by their own ID.
	byID := make(map[string]*gmail.Message, len(details))
	for _, d := range details {
		byID[d.ID] = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return "", nil
	}
	start := idx * pageSize
	if need := start + len(stubs); len(s.items) < need {
		grown := make([]*gmail.Message, need)
		copy(grown, s.items)
		s.items = grown
	}
	for i, stub := range stubs {
		if d, ok := byID[stub.Id]; ok {
			s.items[start+i] = d
		}
	}
	s.totalCount = estimate
	switch {
	case idx+1 < len(s.pageTokens):
		if next != "" {
			s.pageTokens[idx+1] = next
		}
	case next != "":
		s.pageTokens = append(s.pageTokens, next)
	}
	return next, nil
}
