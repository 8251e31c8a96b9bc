package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/address"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
)

// gatedKV blocks reads for one session until release is closed.
type gatedKV struct {
	kv.Store
	prefix  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.HasPrefix(key, g.prefix) {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Store.Get(ctx, key)
}

type flakyKV struct {
	kv.Store
	mu     sync.Mutex
	getErr error
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyKV) setGetErr(err error) {
	f.mu.Lock()
	f.getErr = err
	f.mu.Unlock()
}

type widgetStub struct{}

func (widgetStub) Open(_ context.Context, req checkout.WidgetRequest) (checkout.WidgetSession, error) {
	return checkout.WidgetSession{OrderID: "order_1", AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newManager(store kv.Store, opts Options) (*Manager, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(store, CheckoutDeps{Widget: widgetStub{}, Merchant: checkout.DefaultMerchant()}, opts, zap.NewNop())
	m.now = c.now
	return m, c
}

func TestManagerGet(t *testing.T) {
	ctx := context.Background()
	m := NewManager(kv.NewMemoryStore(), CheckoutDeps{Merchant: checkout.DefaultMerchant()}, Options{}, zap.NewNop())

	a := m.Get(ctx, "a")
	assert.Same(t, a, m.Get(ctx, "a"))

	b := m.Get(ctx, "b")
	assert.NotSame(t, a.Cart, b.Cart)

	_, err := a.Cart.Add(ctx, cart.Item{ID: "p1", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.True(t, b.Cart.Snapshot().IsEmpty(), "sessions do not share carts")
	assert.Equal(t, 2, m.Len())
}

func TestManagerRehydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first := NewManager(store, CheckoutDeps{}, Options{}, zap.NewNop())
	_, err := first.Get(ctx, "a").Cart.Add(ctx, cart.Item{ID: "p1", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	restarted := NewManager(store, CheckoutDeps{}, Options{}, zap.NewNop())
	assert.Len(t, restarted.Get(ctx, "a").Cart.Snapshot().Items, 1)
}

func TestManagerConcurrentGet(t *testing.T) {
	ctx := context.Background()
	m := NewManager(kv.NewMemoryStore(), CheckoutDeps{}, Options{}, zap.NewNop())

	var wg sync.WaitGroup
	got := make([]*Session, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.Get(ctx, "shared")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, m.Len())
}

func TestManagerSlowReadDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	store := &gatedKV{
		Store:   kv.NewMemoryStore(),
		prefix:  kv.Key("slow", ""),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m := NewManager(store, CheckoutDeps{}, Options{}, zap.NewNop())
	cached := m.Get(ctx, "cached")

	slow := make(chan *Session)
	go func() { slow <- m.Get(ctx, "slow") }()
	<-store.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Same(t, cached, m.Get(ctx, "cached"))
		assert.NotNil(t, m.Get(ctx, "fresh"))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("other sessions waited on a slow storage read")
	}

	close(store.release)
	s := <-slow
	assert.Equal(t, "slow", s.ID)
	assert.Equal(t, 3, m.Len())
}

func TestManagerRetriesUnreadableCart(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	seed := NewManager(mem, CheckoutDeps{}, Options{}, zap.NewNop()).Get(ctx, "a")
	for _, id := range []string{"a", "b", "c"} {
		_, err := seed.Cart.Add(ctx, cart.Item{ID: id, Price: decimal.NewFromInt(10)})
		require.NoError(t, err)
	}

	store := &flakyKV{Store: mem}
	store.setGetErr(errors.New("redis: connection pool timeout"))
	m := NewManager(store, CheckoutDeps{}, Options{}, zap.NewNop())

	s := m.Get(ctx, "a")
	assert.True(t, s.Cart.Snapshot().IsEmpty())
	_, err := s.Cart.Add(ctx, cart.Item{ID: "d", Price: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, cart.ErrUnavailable)

	store.setGetErr(nil)
	s = m.Get(ctx, "a")
	assert.Len(t, s.Cart.Snapshot().Items, 3, "cached session reloads once storage is back")

	st, err := s.Cart.Add(ctx, cart.Item{ID: "d", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Len(t, st.Items, 4)

	restarted := NewManager(mem, CheckoutDeps{}, Options{}, zap.NewNop())
	assert.Len(t, restarted.Get(ctx, "a").Cart.Snapshot().Items, 4)
}

func TestManagerSweepEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	m, c := newManager(kv.NewMemoryStore(), Options{IdleTTL: time.Minute})

	old := m.Get(ctx, "old")
	_, err := old.Cart.Add(ctx, cart.Item{ID: "p1", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	c.advance(45 * time.Second)
	m.Get(ctx, "recent")
	c.advance(30 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	back := m.Get(ctx, "old")
	assert.NotSame(t, old, back)
	assert.Len(t, back.Cart.Snapshot().Items, 1, "evicted carts come back from storage")
}

func TestManagerKeepsSessionsThatArePaying(t *testing.T) {
	ctx := context.Background()
	m, c := newManager(kv.NewMemoryStore(), Options{IdleTTL: time.Minute, MaxSessions: 2})

	paying := m.Get(ctx, "paying")
	_, err := paying.Cart.Add(ctx, cart.Item{ID: "p1", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)
	require.NoError(t, paying.Selection.Select(ctx, address.Address{ID: "1", Name: "Arbaz", Phone: "+91-8879519345"}))
	require.NoError(t, paying.Checkout.SelectPayment(ctx, checkout.PaymentSelection{Method: checkout.MethodCOD}))
	_, err = paying.Checkout.Begin(ctx, checkout.ClientInfo{})
	require.NoError(t, err)

	c.advance(time.Second)
	m.Get(ctx, "idle")
	c.advance(time.Hour)

	assert.Equal(t, 1, m.Sweep())
	assert.Same(t, paying, m.Get(ctx, "paying"))

	c.advance(time.Second)
	m.Get(ctx, "b")
	m.Get(ctx, "c")
	assert.Equal(t, 2, m.Len())
	assert.Same(t, paying, m.Get(ctx, "paying"), "paying session survives the cap")
}

func TestManagerCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	m, c := newManager(kv.NewMemoryStore(), Options{IdleTTL: time.Hour, MaxSessions: 3})

	first := m.Get(ctx, "s0")
	for i := 1; i < 10; i++ {
		c.advance(time.Second)
		m.Get(ctx, fmt.Sprintf("s%d", i))
	}
	assert.Equal(t, 3, m.Len())

	assert.NotSame(t, first, m.Get(ctx, "s0"), "oldest session was evicted")
	assert.Equal(t, 3, m.Len())
}

func TestManagerRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(kv.NewMemoryStore(), CheckoutDeps{}, Options{IdleTTL: time.Second}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
