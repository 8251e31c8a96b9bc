// Package session owns the per-shopper state handles. Nothing here is global:
// handlers reach a shopper's cart and checkout only through the Manager.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/address"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
)

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 10000
)

type Session struct {
	ID        string
	Cart      *cart.Store
	Addresses *address.Book
	Selection *address.Selection
	Checkout  *checkout.Orchestrator
}

// CheckoutDeps are shared by every session's orchestrator.
type CheckoutDeps struct {
	Widget    checkout.Widget
	Verifier  checkout.Verifier
	Publisher checkout.OrderPublisher
	Merchant  checkout.Merchant
}

// Options bound the in-memory session cache. Evicted sessions are rebuilt
// from storage on their next request.
type Options struct {
	IdleTTL     time.Duration
	MaxSessions int
}

func (o Options) withDefaults() Options {
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	return o
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	opening  singleflight.Group

	kv       kv.Store
	checkout CheckoutDeps
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

func NewManager(store kv.Store, deps CheckoutDeps, opts Options, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		kv:       store,
		checkout: deps,
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the session for id, rehydrating it from storage on first use.
// Storage reads happen outside the manager lock, so a slow read only delays
// requests for that id.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	if s := m.lookup(id); s != nil {
		if err := s.Cart.Load(ctx); err != nil {
			m.logger.Debug("cart still unreadable", zap.String("session_id", id), zap.Error(err))
		}
		return s
	}

	v, _, _ := m.opening.Do(id, func() (any, error) {
		if s := m.lookup(id); s != nil {
			return s, nil
		}
		s := m.open(ctx, id)
		m.insert(s)
		return s, nil
	})
	return v.(*Session)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = m.now()
	return e.session
}

func (m *Manager) open(ctx context.Context, id string) *Session {
	s := &Session{
		ID:        id,
		Cart:      cart.Open(ctx, m.kv, id, m.logger),
		Addresses: address.NewBook(),
		Selection: address.OpenSelection(ctx, m.kv, id, m.logger),
	}
	s.Checkout = checkout.NewOrchestrator(id, checkout.Deps{
		Cart:      s.Cart,
		Addresses: s.Selection,
		Widget:    m.checkout.Widget,
		Verifier:  m.checkout.Verifier,
		Publisher: m.checkout.Publisher,
		Merchant:  m.checkout.Merchant,
		Logger:    m.logger,
	})
	return s
}

func (m *Manager) insert(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.sweepLocked(now)
	}
	for len(m.sessions) >= m.opts.MaxSessions {
		if !m.evictOldestLocked() {
			m.logger.Warn("session cache over capacity, all sessions are paying", zap.Int("sessions", len(m.sessions)))
			break
		}
	}
	m.sessions[s.ID] = &entry{session: s, lastSeen: now}
}

// Sweep drops sessions idle for longer than the idle TTL and returns how many
// were dropped. Sessions with a payment in progress are kept.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *Manager) sweepLocked(now time.Time) int {
	evicted := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) < m.opts.IdleTTL || e.session.Checkout.Processing() {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}
	return evicted
}

func (m *Manager) evictOldestLocked() bool {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range m.sessions {
		if e.session.Checkout.Processing() {
			continue
		}
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if oldestID == "" {
		return false
	}
	delete(m.sessions, oldestID)
	return true
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("evicted idle sessions", zap.Int("count", n), zap.Int("remaining", m.Len()))
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
