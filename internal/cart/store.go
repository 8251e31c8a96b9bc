package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
)

const snapshotName = "cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidItem     = errors.New("item id is required")
	// ErrNotPersisted means the in-memory cart changed but the snapshot write
	// failed. The returned state is still current.
	ErrNotPersisted = errors.New("cart change not persisted")
	// ErrHeld is returned for changes while a payment for the cart is open.
	ErrHeld = errors.New("cart is locked while a payment is in progress")
	// ErrUnavailable means the saved cart could not be read, so no change
	// was made that could overwrite it.
	ErrUnavailable = errors.New("cart storage unavailable")
)

// Store is one session's cart. Every mutation recomputes the total and writes
// the full snapshot to the backing kv store.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	state  State
	logger *zap.Logger

	// loaded is false until the snapshot has been read successfully (or
	// found missing or malformed). Mutations re-read first while it is false.
	loaded bool
	held   bool
}

// Open rehydrates the session's cart. A missing or malformed snapshot yields
// an empty cart. An unreadable one also shows empty, but is read again
// before the first change so the saved cart is never overwritten blind.
func Open(ctx context.Context, store kv.Store, sessionID string, logger *zap.Logger) *Store {
	s := &Store{
		kv:     store,
		key:    kv.Key(sessionID, snapshotName),
		state:  State{Items: []Item{}},
		logger: logger.With(zap.String("session_id", sessionID)),
	}
	_ = s.rehydrate(ctx)
	return s
}

// Load retries a snapshot read that failed earlier. It is a no-op once the
// cart is loaded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoaded(ctx)
}

// Loaded reports whether the saved snapshot has been read.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// ensureLoaded must be called with mu held.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if err := s.rehydrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) rehydrate(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("read cart snapshot", zap.Error(err))
		return err
	}
	s.loaded = true
	if !ok {
		return nil
	}

	var persisted State
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		s.logger.Warn("discard malformed cart snapshot", zap.Error(err))
		return nil
	}

	seen := make(map[string]bool, len(persisted.Items))
	items := make([]Item, 0, len(persisted.Items))
	for _, it := range persisted.Items {
		if it.ID == "" || it.Quantity < 1 || seen[it.ID] {
			s.logger.Warn("drop invalid cart line", zap.String("product_id", it.ID), zap.Int("quantity", it.Quantity))
			continue
		}
		seen[it.ID] = true
		items = append(items, it)
	}

	s.state = State{Items: items}
	s.state.recompute()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Add appends item with quantity 1, or increments an existing line by exactly
// one. item.Quantity is ignored.
func (s *Store) Add(ctx context.Context, item Item) (State, error) {
	if item.ID == "" {
		return s.Snapshot(), ErrInvalidItem
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(ctx); err != nil {
		return s.state.clone(), err
	}
	if i := s.state.indexOf(item.ID); i >= 0 {
		s.state.Items[i].Quantity++
	} else {
		item.Quantity = 1
		s.state.Items = append(s.state.Items, item)
	}
	return s.commit(ctx)
}

// Remove deletes the line for id. An unknown id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(ctx); err != nil {
		return s.state.clone(), err
	}
	i := s.state.indexOf(id)
	if i < 0 {
		return s.state.clone(), nil
	}
	s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
	return s.commit(ctx)
}

// UpdateQuantity sets the quantity of an existing line. Quantities below one
// are rejected without touching state.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return s.state.clone(), ErrInvalidQuantity
	}
	if err := s.writable(ctx); err != nil {
		return s.state.clone(), err
	}
	i := s.state.indexOf(id)
	if i < 0 {
		return s.state.clone(), nil
	}
	s.state.Items[i].Quantity = quantity
	return s.commit(ctx)
}

func (s *Store) Clear(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(ctx); err != nil {
		return s.state.clone(), err
	}
	s.state.Items = []Item{}
	return s.commit(ctx)
}

// Hold freezes the cart for a payment and returns the state being paid for.
// Shopper changes fail with ErrHeld until Release.
func (s *Store) Hold(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writable(ctx); err != nil {
		return s.state.clone(), err
	}
	s.held = true
	return s.state.clone(), nil
}

// Release unfreezes the cart. With clear set the paid items are removed in
// the same step, so nothing added in between can be lost.
func (s *Store) Release(ctx context.Context, clear bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.held = false
	if !clear {
		return s.state.clone(), nil
	}
	s.state.Items = []Item{}
	return s.commit(ctx)
}

// writable must be called with mu held.
func (s *Store) writable(ctx context.Context) error {
	if s.held {
		return ErrHeld
	}
	return s.ensureLoaded(ctx)
}

// commit must be called with mu held.
func (s *Store) commit(ctx context.Context) (State, error) {
	s.state.recompute()
	snapshot := s.state.clone()

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return snapshot, fmt.Errorf("%w: encode: %w", ErrNotPersisted, err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		s.logger.Warn("persist cart snapshot", zap.Error(err))
		return snapshot, fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}
	return snapshot, nil
}
