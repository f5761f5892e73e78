package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry hands out one hydrated Store per shopper session.
type Registry struct {
	snapshots SnapshotStore
	log       *slog.Logger

	mu     sync.RWMutex
	stores map[string]*Store
	sfg    singleflight.Group // one hydration per session
}

func NewRegistry(snapshots SnapshotStore, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		snapshots: snapshots,
		log:       log,
		stores:    make(map[string]*Store),
	}
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// Get returns the session's store, hydrating it from storage on first use.
// Unusable stored data is logged and the session starts with an empty cart.
// A store whose storage read failed is returned uncached and writes nothing.
func (r *Registry) Get(ctx context.Context, sessionID string) *Store {
	r.mu.RLock()
	st, ok := r.stores[sessionID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	v, _, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.stores[sessionID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		st := NewStore(SessionKey(sessionID), r.snapshots, r.log)
		if err := st.Hydrate(ctx); err != nil {
			var herr *HydrationError
			if errors.As(err, &herr) && herr.Transient {
				// not cached, so the next request reads storage again
				r.log.WarnContext(ctx, "cart storage unreadable", "session_id", sessionID, "error", err)
				return st, nil
			}
			r.log.WarnContext(ctx, "cart hydration failed, starting empty", "session_id", sessionID, "error", err)
		}

		r.mu.Lock()
		r.stores[sessionID] = st
		r.mu.Unlock()
		return st, nil
	})
	return v.(*Store)
}

// Drop forgets the session's in-memory store. The stored snapshot is kept.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.stores, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}
