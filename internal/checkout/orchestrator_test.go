package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/address"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/kv"
)

type WidgetMock struct {
	OpenFunc func(ctx context.Context, req WidgetRequest) (WidgetSession, error)
	calls    []WidgetRequest
}

func (m *WidgetMock) Open(ctx context.Context, req WidgetRequest) (WidgetSession, error) {
	m.calls = append(m.calls, req)
	if m.OpenFunc == nil {
		return WidgetSession{OrderID: "order_1", AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
	}
	return m.OpenFunc(ctx, req)
}

func (m *WidgetMock) OpenCalls() []WidgetRequest {
	return m.calls
}

type PublisherMock struct {
	PublishFunc func(ctx context.Context, c Confirmation) error
	calls       []Confirmation
}

func (m *PublisherMock) PublishOrderPlaced(ctx context.Context, c Confirmation) error {
	m.calls = append(m.calls, c)
	if m.PublishFunc == nil {
		return nil
	}
	return m.PublishFunc(ctx, c)
}

type AddressMock struct {
	addr *address.Address
}

func (m *AddressMock) Get() (address.Address, bool) {
	if m.addr == nil {
		return address.Address{}, false
	}
	return *m.addr, true
}

type fixture struct {
	orch      *Orchestrator
	cart      *cart.Store
	addresses *AddressMock
	widget    *WidgetMock
	publisher *PublisherMock
	verifier  *HMACVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cart:      cart.Open(context.Background(), kv.NewMemoryStore(), "s1", zap.NewNop()),
		addresses: &AddressMock{},
		widget:    &WidgetMock{},
		publisher: &PublisherMock{},
		verifier:  NewHMACVerifier("gateway-secret"),
	}
	merchant := DefaultMerchant()
	merchant.KeyID = "rzp_test_key"
	f.orch = NewOrchestrator("s1", Deps{
		Cart:      f.cart,
		Addresses: f.addresses,
		Widget:    f.widget,
		Verifier:  f.verifier,
		Publisher: f.publisher,
		Merchant:  merchant,
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *fixture) addItem(t *testing.T, id, price string) {
	t.Helper()
	_, err := f.cart.Add(context.Background(), cart.Item{ID: id, Name: id, Price: dec(price)})
	require.NoError(t, err)
}

func (f *fixture) selectAddress() {
	f.addresses.addr = &address.Address{ID: "1", Name: "Arbaz", Phone: "+91-8879519345", City: "Mumbai"}
}

func (f *fixture) ready(t *testing.T) {
	t.Helper()
	f.addItem(t, "p1", "100")
	f.selectAddress()
	require.NoError(t, f.orch.SelectPayment(context.Background(), PaymentSelection{Method: MethodUPI, UPIApp: UPIGooglePay}))
}

func requireValidation(t *testing.T, err error, msg string) {
	t.Helper()
	v, ok := IsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, msg, v.Message)
}

func TestBeginGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("no address", func(t *testing.T) {
		f := newFixture(t)
		f.addItem(t, "p1", "100")
		require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD}))

		_, err := f.orch.Begin(ctx, ClientInfo{})
		requireValidation(t, err, MsgSelectAddress)
		assert.Empty(t, f.widget.OpenCalls())
		assert.False(t, f.orch.Status().Processing)
	})

	t.Run("no payment method", func(t *testing.T) {
		f := newFixture(t)
		f.addItem(t, "p1", "100")
		f.selectAddress()

		_, err := f.orch.Begin(ctx, ClientInfo{})
		requireValidation(t, err, MsgSelectPayment)
		assert.Empty(t, f.widget.OpenCalls())
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		f.selectAddress()
		require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD}))

		_, err := f.orch.Begin(ctx, ClientInfo{})
		requireValidation(t, err, MsgEmptyCart)
		assert.Empty(t, f.widget.OpenCalls())
	})

	t.Run("already processing", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t)

		_, err := f.orch.Begin(ctx, ClientInfo{})
		require.NoError(t, err)
		_, err = f.orch.Begin(ctx, ClientInfo{})
		assert.ErrorIs(t, err, ErrAlreadyProcessing)
		assert.Len(t, f.widget.OpenCalls(), 1)
	})

	t.Run("nothing left to pay online", func(t *testing.T) {
		f := newFixture(t)
		f.addItem(t, "p1", "100")
		f.selectAddress()
		require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD, PartialCOD: true, CODAmount: dec("118")}))

		_, err := f.orch.Begin(ctx, ClientInfo{})
		requireValidation(t, err, MsgNothingOnline)
		assert.Empty(t, f.widget.OpenCalls())
		assert.False(t, f.orch.Status().Processing)
	})
}

func TestBeginAmounts(t *testing.T) {
	ctx := context.Background()

	t.Run("full total in minor units", func(t *testing.T) {
		f := newFixture(t)
		f.addItem(t, "p1", "999")
		f.addItem(t, "p1", "999")
		f.addItem(t, "p2", "501")
		f.selectAddress()
		require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD}))

		cfg, err := f.orch.Begin(ctx, ClientInfo{})
		require.NoError(t, err)
		assert.Equal(t, int64(294882), cfg.Amount)
		require.Len(t, f.widget.OpenCalls(), 1)
		assert.Equal(t, int64(294882), f.widget.OpenCalls()[0].AmountMinor)
		assert.Equal(t, "INR", f.widget.OpenCalls()[0].Currency)
	})

	t.Run("partial cod pays the remainder", func(t *testing.T) {
		f := newFixture(t)
		f.addItem(t, "p1", "100")
		f.selectAddress()
		require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD, PartialCOD: true, CODAmount: dec("50")}))

		st := f.orch.Status()
		assert.Equal(t, int64(6800), st.AmountDue)

		cfg, err := f.orch.Begin(ctx, ClientInfo{})
		require.NoError(t, err)
		assert.Equal(t, int64(6800), cfg.Amount)
		assert.True(t, f.orch.Status().Processing)
	})
}

func TestBeginWidgetConfig(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	f.ready(t)

	cfg, err := f.orch.Begin(ctx, ClientInfo{Mobile: true})
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_key", cfg.Key)
	assert.Equal(t, "order_1", cfg.OrderID)
	assert.Equal(t, "#47126B", cfg.Theme.Color)
	assert.Equal(t, "Arbaz", cfg.Prefill.Name)
	assert.Equal(t, "+91-8879519345", cfg.Prefill.Contact)
	assert.Equal(t, "upi", cfg.Method)
	require.NotNil(t, cfg.UPI)
	assert.Equal(t, "intent", cfg.UPI.Flow)
	assert.Equal(t, "gpay", cfg.UPI.App)

	desktop := newFixture(t)
	desktop.ready(t)
	cfg, err = desktop.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)
	assert.Empty(t, cfg.Method)
	assert.Nil(t, cfg.UPI)
}

func TestBeginGatewayError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)
	f.widget.OpenFunc = func(ctx context.Context, req WidgetRequest) (WidgetSession, error) {
		return WidgetSession{}, errors.New("gateway unavailable")
	}

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, MsgGatewayError, ErrGateway.Error())
	assert.False(t, f.orch.Status().Processing, "gateway errors return to idle")
}

func TestSucceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	nav, err := f.orch.Succeed(ctx, SuccessCallback{
		OrderID:   "order_1",
		PaymentID: "pay_123",
		Signature: f.verifier.Sign("order_1", "pay_123"),
	})
	require.NoError(t, err)
	assert.Equal(t, "success", nav.Status)
	assert.Equal(t, "/payment-status?status=success&paymentId=pay_123", nav.Path)

	assert.False(t, f.orch.Status().Processing)
	assert.True(t, f.cart.Snapshot().IsEmpty())

	require.Len(t, f.publisher.calls, 1)
	conf, ok := f.orch.Confirmation()
	require.True(t, ok)
	assert.Equal(t, "success", conf.Status)
	assert.Equal(t, "pay_123", conf.PaymentID)
	assert.True(t, strings.HasPrefix(conf.OrderRef, "ORD"))
	assert.Len(t, conf.OrderRef, 12)
	assert.Equal(t, "118", conf.Summary.TotalWithTax.String())
	assert.Len(t, conf.Items, 1)
	assert.Equal(t, conf.OrderRef, f.publisher.calls[0].OrderRef)
}

func TestSucceedPublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)
	f.publisher.PublishFunc = func(ctx context.Context, c Confirmation) error {
		return errors.New("broker down")
	}

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	nav, err := f.orch.Succeed(ctx, SuccessCallback{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: f.verifier.Sign("order_1", "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "success", nav.Status)
}

func TestSucceedRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	nav, err := f.orch.Succeed(ctx, SuccessCallback{OrderID: "order_1", PaymentID: "pay_1", Signature: "forged"})
	require.NoError(t, err)
	assert.Equal(t, "failure", nav.Status)
	assert.Equal(t, MsgVerificationFailed, nav.Error)
	assert.Equal(t, "/payment-status?status=failure&error=Payment+verification+failed", nav.Path)

	assert.False(t, f.cart.Snapshot().IsEmpty(), "cart is kept")
	assert.Empty(t, f.publisher.calls)
	assert.False(t, f.orch.Status().Processing)
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	_, err = f.orch.Fail(ctx, FailureCallback{OrderID: "order_other"})
	require.ErrorIs(t, err, ErrOrderMismatch)
	assert.True(t, f.orch.Status().Processing)

	nav, err := f.orch.Fail(ctx, FailureCallback{OrderID: "order_1"})
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentFailed, nav.Error)
	assert.False(t, f.orch.Status().Processing)

	conf, ok := f.orch.Confirmation()
	require.True(t, ok)
	assert.Equal(t, "failure", conf.Status)

	_, err = f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)
	nav, err = f.orch.Fail(ctx, FailureCallback{Description: "Card declined"})
	require.NoError(t, err)
	assert.Equal(t, "Card declined", nav.Error)
}

func TestDismiss(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Dismiss(ctx)
	require.ErrorIs(t, err, ErrNotProcessing)

	_, err = f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	notice, err := f.orch.Dismiss(ctx)
	require.NoError(t, err)
	assert.Equal(t, MsgPaymentCancelled, notice.Message)
	assert.False(t, f.orch.Status().Processing)
	_, ok := f.orch.Confirmation()
	assert.False(t, ok)
}

func TestCallbacksWhileIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.Succeed(ctx, SuccessCallback{OrderID: "order_1", PaymentID: "p", Signature: "s"})
	assert.ErrorIs(t, err, ErrNotProcessing)
	_, err = f.orch.Fail(ctx, FailureCallback{})
	assert.ErrorIs(t, err, ErrNotProcessing)
}

func TestSelectPaymentWhileProcessing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	err = f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD})
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
}

func TestCartIsHeldWhilePaymentIsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)
	require.Len(t, f.widget.OpenCalls(), 1)
	assert.Equal(t, int64(11800), f.widget.OpenCalls()[0].AmountMinor)

	_, err = f.cart.Add(ctx, cart.Item{ID: "p2", Name: "p2", Price: dec("500")})
	require.ErrorIs(t, err, cart.ErrHeld)
	_, err = f.cart.UpdateQuantity(ctx, "p1", 5)
	require.ErrorIs(t, err, cart.ErrHeld)
	assert.Len(t, f.cart.Snapshot().Items, 1)

	_, err = f.orch.Succeed(ctx, SuccessCallback{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: f.verifier.Sign("order_1", "pay_1"),
	})
	require.NoError(t, err)

	conf, ok := f.orch.Confirmation()
	require.True(t, ok)
	require.Len(t, conf.Items, 1)
	assert.Equal(t, "p1", conf.Items[0].ID)
	assert.Equal(t, "118", conf.Summary.TotalWithTax.String())
	assert.Equal(t, "118", conf.PaidOnline.String())
	assert.True(t, conf.PayOnDelivery.IsZero(), "upi orders owe nothing on delivery")
	require.Len(t, f.publisher.calls, 1)
	assert.Len(t, f.publisher.calls[0].Items, 1)

	assert.True(t, f.cart.Snapshot().IsEmpty())
	_, err = f.cart.Add(ctx, cart.Item{ID: "p2", Name: "p2", Price: dec("500")})
	require.NoError(t, err, "cart is released after the payment")
}

func TestCartIsReleasedOnEveryExit(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name        string
		gatewayDown bool
		exit        func(f *fixture) error
	}{
		{name: "gateway error", gatewayDown: true, exit: func(f *fixture) error { return nil }},
		{name: "bad signature", exit: func(f *fixture) error {
			_, err := f.orch.Succeed(ctx, SuccessCallback{OrderID: "order_1", PaymentID: "pay_1", Signature: "forged"})
			return err
		}},
		{name: "fail", exit: func(f *fixture) error {
			_, err := f.orch.Fail(ctx, FailureCallback{OrderID: "order_1"})
			return err
		}},
		{name: "dismiss", exit: func(f *fixture) error {
			_, err := f.orch.Dismiss(ctx)
			return err
		}},
		{name: "widget error", exit: func(f *fixture) error {
			_, err := f.orch.Error(ctx, ErrorCallback{OrderID: "order_1"})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.ready(t)
			if tc.gatewayDown {
				f.widget.OpenFunc = func(ctx context.Context, req WidgetRequest) (WidgetSession, error) {
					return WidgetSession{}, errors.New("gateway unavailable")
				}
			}

			_, err := f.orch.Begin(ctx, ClientInfo{})
			if tc.gatewayDown {
				require.ErrorIs(t, err, ErrGateway)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, tc.exit(f))

			assert.False(t, f.orch.Processing())
			st, err := f.cart.Add(ctx, cart.Item{ID: "p2", Name: "p2", Price: dec("500")})
			require.NoError(t, err)
			assert.Len(t, st.Items, 2, "unpaid cart is kept")
		})
	}
}

func TestBeginGuardFailureReleasesCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "p1", "100")
	f.selectAddress()
	require.NoError(t, f.orch.SelectPayment(ctx, PaymentSelection{Method: MethodCOD, PartialCOD: true, CODAmount: dec("118")}))

	_, err := f.orch.Begin(ctx, ClientInfo{})
	requireValidation(t, err, MsgNothingOnline)

	_, err = f.cart.Add(ctx, cart.Item{ID: "p2", Name: "p2", Price: dec("1")})
	require.NoError(t, err)
}

func TestBeginSendsPayerToGateway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	require.Len(t, f.widget.OpenCalls(), 1)
	req := f.widget.OpenCalls()[0]
	assert.Equal(t, "Arbaz", req.PayerName)
	assert.Equal(t, "+91-8879519345", req.PayerContact)
	assert.Equal(t, "#47126B", req.ThemeColor)
	assert.True(t, strings.HasPrefix(req.Receipt, "rcpt_"))
	assert.Equal(t, "s1", req.Notes["session_id"])
}

func TestError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)

	_, err := f.orch.Error(ctx, ErrorCallback{})
	require.ErrorIs(t, err, ErrNotProcessing)

	_, err = f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	_, err = f.orch.Error(ctx, ErrorCallback{OrderID: "order_other"})
	require.ErrorIs(t, err, ErrOrderMismatch)
	assert.True(t, f.orch.Processing())

	notice, err := f.orch.Error(ctx, ErrorCallback{OrderID: "order_1", Description: "BAD_REQUEST_ERROR"})
	require.NoError(t, err)
	assert.Equal(t, MsgUnexpectedError, notice.Message)
	assert.False(t, f.orch.Processing())
	assert.Len(t, f.cart.Snapshot().Items, 1)
	_, ok := f.orch.Confirmation()
	assert.False(t, ok, "widget errors do not record an outcome")

	_, err = f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err, "checkout can be retried")
}

func TestStatusExposesPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ready(t)
	assert.Empty(t, f.orch.Status().PendingOrderID)

	_, err := f.orch.Begin(ctx, ClientInfo{})
	require.NoError(t, err)

	st := f.orch.Status()
	assert.True(t, st.Processing)
	assert.Equal(t, "order_1", st.PendingOrderID)
	assert.Equal(t, int64(11800), st.AmountDue)

	_, err = f.orch.Dismiss(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.orch.Status().PendingOrderID)
}
