// Package client keeps a document's highlights in memory and mirrors every
// local change to a Store in the background.
//
// Mutations are optimistic: they change the local collection before any
// request is made and are never rolled back. A failed reconciliation is
// logged and the local copy stays authoritative for the session. Requests
// for the same highlight id are sent one after another in call order;
// requests for different ids may complete in any order.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pdf-annotation-sync/internal/domain"
	"pdf-annotation-sync/internal/validation"
	"pdf-annotation-sync/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrNoDocument is returned by mutations made before any document was loaded.
var ErrNoDocument = errors.New("no document loaded")

// Client is the local working copy of one document's annotation collection.
type Client struct {
	store     Store
	logger    domain.Logger
	validator *validation.Validator
	now       func() time.Time
	newID     func() (string, error)

	attempts   int
	retryDelay time.Duration

	mu         sync.Mutex
	identity   domain.DocumentIdentity
	highlights []domain.Highlight
	generation uint64
	touched    map[string]struct{} // ids created or deleted while a Load is fetching
	pending    map[string]chan struct{}
	inflight   sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets where reconciliation failures are reported.
func WithLogger(l domain.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetry makes each reconciliation request up to attempts times, waiting
// delay between tries. Rejected input and not-found are never retried.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts < 1 {
			attempts = 1
		}
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// WithClock overrides the source of createdAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithIDGenerator overrides highlight id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(c *Client) { c.newID = gen }
}

// New returns a Client with no document loaded.
func New(store Store, opts ...Option) *Client {
	c := &Client{
		store:     store,
		validator: validation.New(),
		now:       time.Now,
		newID:     func() (string, error) { return gonanoid.New() },
		attempts:  1,
		pending:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.NewLogger("warn", logger.FormatConsole)
	}
	return c
}

// Load makes identity the current document and replaces the local collection
// with the store's. Highlights created or deleted while the fetch was running
// are kept on top of the fetched records. On failure the collection holds only
// those local changes and the error is returned; the client remains usable
// for new highlights.
func (c *Client) Load(ctx context.Context, identity domain.DocumentIdentity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.identity = identity
	c.highlights = nil
	c.touched = make(map[string]struct{})
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	highlights, err := c.store.List(ctx, identity)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// a newer Load or Reset took over
		return nil
	}
	touched := c.touched
	c.touched = nil
	if err != nil {
		c.logger.Warn("Failed to load highlights", "document_id", identity, "error", err.Error())
		return fmt.Errorf("failed to load highlights: %w", err)
	}
	merged := make([]domain.Highlight, 0, len(c.highlights)+len(highlights))
	merged = append(merged, c.highlights...)
	for _, h := range highlights {
		if _, ok := touched[h.ID]; ok {
			continue
		}
		merged = append(merged, h.Clone())
	}
	c.highlights = merged
	c.logger.Debug("Highlights loaded", "document_id", identity, "count", len(highlights), "local", len(touched))
	return nil
}

// Create assigns an id and createdAt to draft, puts it at the front of the
// local collection and sends it to the store in the background.
func (c *Client) Create(draft domain.Highlight) (domain.Highlight, error) {
	id, err := c.newID()
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("failed to generate highlight id: %w", err)
	}

	h := draft.Clone()
	h.ID = id
	h.CreatedAt = c.now().UTC().Truncate(time.Millisecond)
	if h.Type == domain.HighlightTypeArea && h.Position.Rects == nil {
		h.Position.Rects = []domain.PageRect{}
	}
	if err := c.validator.ValidateHighlight(&h); err != nil {
		return domain.Highlight{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == "" {
		return domain.Highlight{}, ErrNoDocument
	}

	c.highlights = append([]domain.Highlight{h}, c.highlights...)
	c.touch(id)

	identity, record := c.identity, h.Clone()
	c.dispatch("append", id, func(ctx context.Context) error {
		return c.store.Append(ctx, identity, record)
	})
	return h.Clone(), nil
}

// Update merges patch into the local highlight with the given id and sends
// the same patch to the store. Changes to immutable fields are rejected
// before anything is modified. An id that is not in the local collection is
// logged and ignored.
func (c *Client) Update(id string, patch domain.HighlightPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == "" {
		return ErrNoDocument
	}

	i := c.indexOf(id)
	if i < 0 {
		c.logger.Warn("Update for unknown local highlight", "document_id", c.identity, "highlight_id", id)
		return nil
	}
	if len(patch) == 0 {
		return nil
	}

	raw, err := c.highlights[i].Raw()
	if err != nil {
		return err
	}
	merged, err := domain.MergePatch(raw, patch)
	if err != nil {
		return err
	}
	h, err := merged.Decode()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidHighlight, err)
	}
	if err := c.validator.ValidateHighlight(&h); err != nil {
		return err
	}
	c.highlights[i] = h

	identity, sent := c.identity, domain.RawHighlight(patch).Clone()
	c.dispatch("update", id, func(ctx context.Context) error {
		return c.store.ApplyUpdate(ctx, identity, id, domain.HighlightPatch(sent))
	})
	return nil
}

// UpdateComment replaces the comment of the highlight with the given id.
func (c *Client) UpdateComment(id, comment string) error {
	return c.Update(id, domain.NewCommentPatch(comment))
}

// Delete removes the highlight locally and from the store. Deleting an id
// that is not held locally still asks the store to remove it.
func (c *Client) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == "" {
		return ErrNoDocument
	}

	if i := c.indexOf(id); i >= 0 {
		c.highlights = append(c.highlights[:i:i], c.highlights[i+1:]...)
	}
	c.touch(id)

	identity := c.identity
	c.dispatch("delete", id, func(ctx context.Context) error {
		return c.store.Remove(ctx, identity, id)
	})
	return nil
}

// Highlights returns a copy of the local collection, newest first.
func (c *Client) Highlights() []domain.Highlight {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Highlight, len(c.highlights))
	for i, h := range c.highlights {
		out[i] = h.Clone()
	}
	return out
}

// Get returns the local highlight with the given id.
func (c *Client) Get(id string) (domain.Highlight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.highlights[i].Clone(), true
	}
	return domain.Highlight{}, false
}

// Identity returns the current document identity, empty before Load.
func (c *Client) Identity() domain.DocumentIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Reset drops the local collection without touching the store. In-flight
// requests still complete.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.highlights = nil
	c.touched = nil
	c.generation++
}

// Flush waits until every request dispatched so far has finished or ctx is done.
func (c *Client) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) touch(id string) {
	if c.touched != nil {
		c.touched[id] = struct{}{}
	}
}

func (c *Client) indexOf(id string) int {
	for i, h := range c.highlights {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// dispatch sends a request in the background once the previous request for
// the same id has finished. Callers hold c.mu.
func (c *Client) dispatch(op, id string, send func(context.Context) error) {
	prev := c.pending[id]
	done := make(chan struct{})
	c.pending[id] = done
	c.inflight.Add(1)

	go func() {
		defer c.inflight.Done()
		defer c.release(id, done)
		if prev != nil {
			<-prev
		}
		c.reconcile(op, id, send)
	}()
}

func (c *Client) release(id string, done chan struct{}) {
	close(done)
	c.mu.Lock()
	if c.pending[id] == done {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Client) reconcile(op, id string, send func(context.Context) error) {
	var err error
	attempt := 0
	for attempt < c.attempts {
		attempt++
		if err = send(context.Background()); err == nil {
			return
		}
		if !retryable(err) {
			break
		}
		if attempt < c.attempts && c.retryDelay > 0 {
			time.Sleep(c.retryDelay)
		}
	}

	if errors.Is(err, domain.ErrHighlightNotFound) {
		c.logger.Warn("Highlight missing from store, local and durable state diverged",
			"op", op, "highlight_id", id)
		return
	}
	c.logger.Warn("Failed to sync highlight, keeping local change",
		"op", op, "highlight_id", id, "attempts", attempt, "error", err.Error())
}
