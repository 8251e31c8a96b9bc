package address

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
)

const selectionName = "selectedAddress"

// Selection is the session's single selected delivery address, persisted
// under the session's selectedAddress key.
type Selection struct {
	mu       sync.RWMutex
	kv       kv.Store
	key      string
	selected *Address
	logger   *zap.Logger
}

// OpenSelection restores the persisted selection. Unreadable or malformed
// data is treated as no selection.
func OpenSelection(ctx context.Context, store kv.Store, sessionID string, logger *zap.Logger) *Selection {
	s := &Selection{
		kv:     store,
		key:    kv.Key(sessionID, selectionName),
		logger: logger.With(zap.String("session_id", sessionID)),
	}

	raw, ok, err := store.Get(ctx, s.key)
	switch {
	case err != nil:
		s.logger.Warn("read selected address", zap.Error(err))
	case ok:
		var a Address
		if err := json.Unmarshal([]byte(raw), &a); err != nil || a.ID == "" {
			s.logger.Warn("discard malformed selected address", zap.Error(err))
			break
		}
		s.selected = &a
	}
	return s
}

func (s *Selection) Get() (Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return Address{}, false
	}
	return *s.selected, true
}

// Select makes a the current address. The selection holds in memory even if
// the write fails; the error is returned so callers can warn.
func (s *Selection) Select(ctx context.Context, a Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = &a
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode selected address: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		s.logger.Warn("persist selected address", zap.Error(err))
		return fmt.Errorf("persist selected address: %w", err)
	}
	return nil
}
