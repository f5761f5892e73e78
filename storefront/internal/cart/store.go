package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fjod/go_storefront/storefront/domain"
)

// SnapshotStore persists serialized carts under a key.
// Load returns domain.ErrSnapshotNotFound when nothing is stored.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

var errMalformed = errors.New("items is not a list")

// Store owns one session's cart. Every mutation goes through Reduce and is then
// written to the snapshot store; a failed write is logged and the in-memory
// cart stays authoritative.
type Store struct {
	mu        sync.Mutex
	key       string
	state     domain.Cart
	snapshots SnapshotStore
	log       *slog.Logger
	// unread is set while the stored snapshot could not be read; no write
	// happens until a later read succeeds.
	unread bool
}

func NewStore(key string, snapshots SnapshotStore, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		key:       key,
		state:     domain.Cart{Items: []domain.LineItem{}},
		snapshots: snapshots,
		log:       log.With("cart_key", key),
	}
}

func (s *Store) Key() string {
	return s.key
}

// Hydrate replaces the in-memory cart with the stored snapshot. Any problem
// with the stored data leaves an empty cart; the returned *HydrationError is
// for logging only. A missing snapshot is not an error. When storage could
// not be read at all the store keeps retrying on later mutations and writes
// nothing until a read succeeds.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	s.state = domain.Cart{Items: []domain.LineItem{}}

	payload, err := s.snapshots.Load(ctx, s.key)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		s.unread = false
		return nil
	}
	if err != nil {
		s.unread = true
		return &HydrationError{Key: s.key, Err: err, Transient: true}
	}
	s.unread = false

	c, err := decodeSnapshot(payload)
	if err != nil {
		return &HydrationError{Key: s.key, Err: err}
	}
	s.state = c
	return nil
}

func (s *Store) AddItem(ctx context.Context, p domain.Product, size string, quantity int) (domain.Cart, error) {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return domain.Cart{}, ErrMissingProduct
	case strings.TrimSpace(size) == "":
		return domain.Cart{}, ErrInvalidSize
	case quantity <= 0:
		return domain.Cart{}, ErrInvalidQuantity
	case p.Price.IsNegative():
		return domain.Cart{}, ErrInvalidPrice
	}
	return s.dispatch(ctx, AddAction(p, size, quantity)), nil
}

func (s *Store) RemoveItem(ctx context.Context, productID, size string) domain.Cart {
	return s.dispatch(ctx, RemoveAction(productID, size))
}

// UpdateQuantity sets the line's quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID, size string, quantity int) domain.Cart {
	return s.dispatch(ctx, UpdateQuantityAction(productID, size, quantity))
}

func (s *Store) Clear(ctx context.Context) domain.Cart {
	return s.dispatch(ctx, ClearAction())
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Flush writes the current cart, subject to the same guard as mutations.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, s.state)
}

func (s *Store) dispatch(ctx context.Context, a Action) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unread {
		pending := s.state
		if err := s.load(ctx); err != nil {
			s.state = Reduce(pending, a)
			s.log.WarnContext(ctx, "cart storage unreadable, change kept in memory only", "action", a.Type, "error", err)
			return s.state.Clone()
		}
	}

	s.state = Reduce(s.state, a)
	if err := s.persist(ctx, s.state); err != nil {
		s.log.WarnContext(ctx, "failed to persist cart", "action", a.Type, "error", err)
	}
	return s.state.Clone()
}

// persist writes c unless that would replace a non-empty stored cart with an
// empty one that did not come from Clear.
func (s *Store) persist(ctx context.Context, c domain.Cart) error {
	if s.unread {
		return ErrStorageUnread
	}
	if c.IsEmpty() && c.LastAction != domain.ActionClearCart {
		prev, err := s.snapshots.Load(ctx, s.key)
		switch {
		case err == nil:
			if stored, decErr := decodeSnapshot(prev); decErr == nil && !stored.IsEmpty() {
				s.log.DebugContext(ctx, "skipped empty cart write over stored items", "last_action", c.LastAction)
				return nil
			}
		case !errors.Is(err, domain.ErrSnapshotNotFound):
			return fmt.Errorf("read previous snapshot: %w", err)
		}
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.snapshots.Save(ctx, s.key, payload); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func decodeSnapshot(payload []byte) (domain.Cart, error) {
	var c domain.Cart
	if err := json.Unmarshal(payload, &c); err != nil {
		return domain.Cart{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if c.Items == nil {
		return domain.Cart{}, errMalformed
	}
	c.Items = positive(c.Items)
	computeTotals(&c)
	return c, nil
}
