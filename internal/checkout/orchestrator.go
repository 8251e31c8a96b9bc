package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/address"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

const paymentStatusPath = "/payment-status"

// CartReader is the session cart as checkout sees it. Hold freezes the cart
// for the payment in progress and Release unfreezes it, clearing the paid
// items when clear is set.
type CartReader interface {
	Snapshot() cart.State
	Hold(ctx context.Context) (cart.State, error)
	Release(ctx context.Context, clear bool) (cart.State, error)
}

type AddressReader interface {
	Get() (address.Address, bool)
}

type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, c Confirmation) error
}

type Deps struct {
	Cart      CartReader
	Addresses AddressReader
	Widget    Widget
	Verifier  Verifier
	Publisher OrderPublisher // optional
	Merchant  Merchant
	Logger    *zap.Logger
}

type SuccessCallback struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type FailureCallback struct {
	OrderID     string `json:"orderId"`
	Description string `json:"description"`
}

// Navigation tells the browser where to go after a payment outcome.
type Navigation struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId,omitempty"`
	Error     string `json:"error,omitempty"`
	Path      string `json:"path"`
}

// ErrorCallback reports a widget error that is neither a payment failure nor
// a dismissal. Description is only logged.
type ErrorCallback struct {
	OrderID     string `json:"orderId"`
	Description string `json:"description"`
}

type Notice struct {
	Message string `json:"message"`
}

// Confirmation is the payment-status view of a finished payment attempt.
type Confirmation struct {
	SessionID      string           `json:"-"`
	Status         string           `json:"status"`
	OrderRef       string           `json:"orderRef"`
	GatewayOrderID string           `json:"gatewayOrderId"`
	PaymentID      string           `json:"paymentId,omitempty"`
	Error          string           `json:"error,omitempty"`
	Summary        pricing.Summary  `json:"summary"`
	PaidOnline     decimal.Decimal  `json:"paidOnline"`
	PayOnDelivery  decimal.Decimal  `json:"payOnDelivery"`
	Payment        PaymentSelection `json:"payment"`
	Items          []cart.Item      `json:"items"`
	Address        address.Address  `json:"address"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Status is the checkout page state.
type Status struct {
	AddressSelected bool              `json:"addressSelected"`
	Address         *address.Address  `json:"address,omitempty"`
	Payment         *PaymentSelection `json:"payment,omitempty"`
	Processing      bool              `json:"processing"`
	Summary         pricing.Summary   `json:"summary"`
	AmountDue       int64             `json:"amountDue"`
	CartEmpty       bool              `json:"cartEmpty"`
	// PendingOrderID names the gateway order still open, so a reloaded page
	// can dismiss it.
	PendingOrderID  string            `json:"pendingOrderId,omitempty"`
}

// pendingPayment is everything fixed at Begin. The outcome is recorded from
// it, never from the live cart.
type pendingPayment struct {
	orderID     string
	amountMinor int64
	online      decimal.Decimal
	selection   PaymentSelection
	items       []cart.Item
	summary     pricing.Summary
	address     address.Address
}

// Orchestrator drives one session's checkout from Idle to Processing and back.
// At most one payment is in progress per session.
type Orchestrator struct {
	mu sync.Mutex

	sessionID string
	deps      Deps
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	payment      *PaymentSelection
	processing   bool
	pending      *pendingPayment
	confirmation *Confirmation
}

func NewOrchestrator(sessionID string, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		sessionID: sessionID,
		deps:      deps,
		logger:    logger.With(zap.String("session_id", sessionID)),
		tracer:    otel.Tracer("storefront/checkout"),
		now:       time.Now,
	}
}

// SelectPayment validates sel against the current cart and stores it.
func (o *Orchestrator) SelectPayment(_ context.Context, sel PaymentSelection) error {
	total := o.deps.Cart.Snapshot().Summary().TotalWithTax
	if err := sel.Validate(total); err != nil {
		return err
	}
	if sel.Method != MethodCOD {
		sel.PartialCOD = false
	}
	if !sel.PartialCOD {
		sel.CODAmount = decimal.Zero
	}
	if sel.Method != MethodUPI {
		sel.UPIApp = ""
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return ErrAlreadyProcessing
	}
	o.payment = &sel
	return nil
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.deps.Cart.Snapshot()
	sum := st.Summary()
	out := Status{
		Processing: o.processing,
		Summary:    sum.Rounded(),
		CartEmpty:  st.IsEmpty(),
	}
	if a, ok := o.deps.Addresses.Get(); ok {
		out.AddressSelected = true
		out.Address = &a
	}
	if o.payment != nil {
		p := *o.payment
		out.Payment = &p
		out.AmountDue = pricing.MinorUnits(p.OnlineAmount(sum.TotalWithTax))
	}
	if o.pending != nil {
		out.AmountDue = o.pending.amountMinor
		out.PendingOrderID = o.pending.orderID
	}
	return out
}

// Processing reports whether a payment is in progress.
func (o *Orchestrator) Processing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processing
}

// Begin checks that the order can be paid, moves to Processing and opens a
// gateway order. The returned config opens the widget in the browser.
func (o *Orchestrator) Begin(ctx context.Context, client ClientInfo) (WidgetConfig, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Begin", trace.WithAttributes(attribute.String("session.id", o.sessionID)))
	defer span.End()

	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		return WidgetConfig{}, ErrAlreadyProcessing
	}
	addr, sel, st, err := o.guard(ctx)
	if err != nil {
		o.mu.Unlock()
		span.SetStatus(codes.Error, err.Error())
		return WidgetConfig{}, err
	}

	summary := st.Summary()
	online := sel.OnlineAmount(summary.TotalWithTax)
	amount := pricing.MinorUnits(online)
	if amount <= 0 {
		o.release(ctx, false)
		o.mu.Unlock()
		return WidgetConfig{}, newFailedPrecondition(MsgNothingOnline)
	}
	o.processing = true
	o.mu.Unlock()

	span.SetAttributes(attribute.Int64("payment.amount_minor", amount), attribute.String("payment.method", string(sel.Method)))

	session, err := o.deps.Widget.Open(ctx, WidgetRequest{
		AmountMinor:  amount,
		Currency:     o.deps.Merchant.Currency,
		Receipt:      "rcpt_" + shortID(12),
		PayerName:    addr.Name,
		PayerContact: addr.Phone,
		ThemeColor:   o.deps.Merchant.ThemeColor,
		Notes:        map[string]string{"session_id": o.sessionID},
	})
	if err != nil {
		o.mu.Lock()
		o.processing = false
		o.release(ctx, false)
		o.mu.Unlock()

		o.logger.Error("open payment", zap.Int64("amount_minor", amount), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway")
		return WidgetConfig{}, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	o.mu.Lock()
	o.pending = &pendingPayment{
		orderID:     session.OrderID,
		amountMinor: amount,
		online:      online,
		selection:   sel,
		items:       st.Items,
		summary:     summary,
		address:     addr,
	}
	o.mu.Unlock()

	o.logger.Info("payment opened", zap.String("order_id", session.OrderID), zap.Int64("amount_minor", amount))
	return o.widgetConfig(session, addr, sel, client), nil
}

// guard must be called with mu held. On success the cart is left held.
func (o *Orchestrator) guard(ctx context.Context) (address.Address, PaymentSelection, cart.State, error) {
	addr, ok := o.deps.Addresses.Get()
	if !ok {
		return address.Address{}, PaymentSelection{}, cart.State{}, newFailedPrecondition(MsgSelectAddress)
	}
	if o.payment == nil {
		return address.Address{}, PaymentSelection{}, cart.State{}, newFailedPrecondition(MsgSelectPayment)
	}
	st, err := o.deps.Cart.Hold(ctx)
	if err != nil {
		return address.Address{}, PaymentSelection{}, cart.State{}, err
	}
	if st.IsEmpty() {
		o.release(ctx, false)
		return address.Address{}, PaymentSelection{}, cart.State{}, newFailedPrecondition(MsgEmptyCart)
	}
	sel := *o.payment
	if err := sel.Validate(st.Summary().TotalWithTax); err != nil {
		o.release(ctx, false)
		return address.Address{}, PaymentSelection{}, cart.State{}, err
	}
	return addr, sel, st, nil
}

func (o *Orchestrator) release(ctx context.Context, clear bool) {
	if _, err := o.deps.Cart.Release(ctx, clear); err != nil {
		o.logger.Warn("release cart", zap.Bool("clear", clear), zap.Error(err))
	}
}

func (o *Orchestrator) widgetConfig(s WidgetSession, addr address.Address, sel PaymentSelection, client ClientInfo) WidgetConfig {
	m := o.deps.Merchant
	cfg := WidgetConfig{
		Key:         m.KeyID,
		Amount:      s.AmountMinor,
		Currency:    s.Currency,
		Name:        m.Name,
		Description: m.Description,
		Image:       m.Image,
		OrderID:     s.OrderID,
		Prefill:     Prefill{Name: addr.Name, Contact: addr.Phone},
		Theme:       Theme{Color: m.ThemeColor},
	}
	if cfg.Currency == "" {
		cfg.Currency = m.Currency
	}
	if client.Mobile && sel.Method == MethodUPI {
		cfg.Method = string(MethodUPI)
		cfg.UPI = &UPIOptions{Flow: "intent", App: sel.UPIApp.intentApp()}
	}
	return cfg
}

// Succeed handles the widget's success callback. The payment counts only if
// the gateway signature verifies.
func (o *Orchestrator) Succeed(ctx context.Context, cb SuccessCallback) (Navigation, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Succeed", trace.WithAttributes(attribute.String("payment.order_id", cb.OrderID)))
	defer span.End()

	o.mu.Lock()
	pending, err := o.takePending(cb.OrderID)
	if err != nil {
		o.mu.Unlock()
		return Navigation{}, err
	}

	if !o.deps.Verifier.Verify(pending.orderID, cb.PaymentID, cb.Signature) {
		conf := o.record(pending, "failure", "", MsgVerificationFailed)
		o.release(ctx, false)
		o.mu.Unlock()

		o.logger.Warn("payment signature rejected", zap.String("order_id", pending.orderID), zap.String("payment_id", cb.PaymentID))
		span.SetStatus(codes.Error, MsgVerificationFailed)
		return failureNavigation(conf.Error), nil
	}

	conf := o.record(pending, "success", cb.PaymentID, "")
	o.release(ctx, true)
	o.mu.Unlock()

	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.PublishOrderPlaced(ctx, conf); err != nil {
			o.logger.Error("publish order placed", zap.String("order_ref", conf.OrderRef), zap.Error(err))
			span.RecordError(err)
		}
	}

	o.logger.Info("payment verified", zap.String("order_ref", conf.OrderRef), zap.String("payment_id", cb.PaymentID))
	return Navigation{
		Status:    "success",
		PaymentID: cb.PaymentID,
		Path:      paymentStatusPath + "?status=success&paymentId=" + url.QueryEscape(cb.PaymentID),
	}, nil
}

// Fail handles the widget's payment-failed callback.
func (o *Orchestrator) Fail(ctx context.Context, cb FailureCallback) (Navigation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := o.takePending(cb.OrderID)
	if err != nil {
		return Navigation{}, err
	}
	msg := strings.TrimSpace(cb.Description)
	if msg == "" {
		msg = MsgPaymentFailed
	}
	o.record(pending, "failure", "", msg)
	o.release(ctx, false)
	o.logger.Info("payment failed", zap.String("order_id", pending.orderID), zap.String("reason", msg))
	return failureNavigation(msg), nil
}

// Dismiss handles the shopper closing the widget.
func (o *Orchestrator) Dismiss(ctx context.Context) (Notice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.takePending(""); err != nil {
		return Notice{}, err
	}
	o.release(ctx, false)
	return Notice{Message: MsgPaymentCancelled}, nil
}

// Error handles a widget error. The shopper stays on checkout with the cart
// intact and no confirmation is recorded.
func (o *Orchestrator) Error(ctx context.Context, cb ErrorCallback) (Notice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, err := o.takePending(cb.OrderID)
	if err != nil {
		return Notice{}, err
	}
	o.release(ctx, false)
	o.logger.Warn("payment widget error", zap.String("order_id", pending.orderID), zap.String("description", cb.Description))
	return Notice{Message: MsgUnexpectedError}, nil
}

func (o *Orchestrator) Confirmation() (Confirmation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.confirmation == nil {
		return Confirmation{}, false
	}
	return *o.confirmation, true
}

// takePending returns to Idle and hands back the payment in progress. orderID
// may be empty when the caller does not know it. Must be called with mu held.
func (o *Orchestrator) takePending(orderID string) (pendingPayment, error) {
	if !o.processing {
		return pendingPayment{}, ErrNotProcessing
	}
	if o.pending == nil {
		// the gateway order is still being created
		return pendingPayment{}, ErrNotProcessing
	}
	if orderID != "" && orderID != o.pending.orderID {
		return pendingPayment{}, ErrOrderMismatch
	}
	p := *o.pending
	o.pending = nil
	o.processing = false
	return p, nil
}

// record must be called with mu held.
func (o *Orchestrator) record(p pendingPayment, status, paymentID, errMsg string) Confirmation {
	items := make([]cart.Item, len(p.items))
	copy(items, p.items)

	conf := Confirmation{
		SessionID:      o.sessionID,
		Status:         status,
		OrderRef:       "ORD" + shortID(9),
		GatewayOrderID: p.orderID,
		PaymentID:      paymentID,
		Error:          errMsg,
		Summary:        p.summary.Rounded(),
		PaidOnline:     pricing.Display(p.online),
		PayOnDelivery:  pricing.Display(p.summary.TotalWithTax.Sub(p.online)),
		Payment:        p.selection,
		Items:          items,
		Address:        p.address,
		CreatedAt:      o.now().UTC(),
	}
	o.confirmation = &conf
	return conf
}

func failureNavigation(msg string) Navigation {
	return Navigation{
		Status: "failure",
		Error:  msg,
		Path:   paymentStatusPath + "?status=failure&error=" + url.QueryEscape(msg),
	}
}

// IsValidation reports whether err is a shopper-facing validation error.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

func shortID(n int) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:n]
}
