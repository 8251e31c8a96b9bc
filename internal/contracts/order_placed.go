package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
)

const (
	OrderPlacedEventName           = "OrderPlaced"
	OrderPlacedEventVersion        = 1
	OrderPlacedEnvelopedSchemaPath = "contracts/events/storefront/OrderPlaced.v1.enveloped.schema.json"
	StorefrontProducer             = "storefront-service"
)

type EventEnvelope struct {
	EventName     string             `json:"eventName"`
	EventVersion  int                `json:"eventVersion"`
	EventID       string             `json:"eventId"`
	CorrelationID string             `json:"correlationId,omitempty"`
	CausationID   string             `json:"causationId,omitempty"`
	Producer      string             `json:"producer"`
	PartitionKey  string             `json:"partitionKey"`
	Sequence      int64              `json:"sequence"`
	OccurredAt    time.Time          `json:"occurredAt"`
	Schema        string             `json:"schema"`
	Payload       OrderPlacedPayload `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderRef       string             `json:"orderRef"`
	SessionID      string             `json:"sessionId"`
	GatewayOrderID string             `json:"gatewayOrderId"`
	PaymentID      string             `json:"paymentId"`
	PaymentMethod  string             `json:"paymentMethod"`
	Items          []OrderPlacedItem  `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	Tax            decimal.Decimal    `json:"tax"`
	TotalWithTax   decimal.Decimal    `json:"totalWithTax"`
	PaidOnline     decimal.Decimal    `json:"paidOnline"`
	PayOnDelivery  decimal.Decimal    `json:"payOnDelivery"`
	ShipTo         OrderPlacedAddress `json:"shipTo"`
	Timestamp      time.Time          `json:"timestamp"`
}

type OrderPlacedItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Locality string `json:"locality"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

type EnvelopeOptions struct {
	PartitionKey  string
	Sequence      int64
	Producer      string
	SchemaPath    string
	CorrelationID string
	CausationID   string
	EventID       string
	OccurredAt    time.Time
}

// BuildOrderPlacedEvent wraps a successful payment confirmation in the shared
// event envelope. The partition key defaults to the order reference.
func BuildOrderPlacedEvent(c checkout.Confirmation, opts EnvelopeOptions) EventEnvelope {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	occurredAt := opts.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	schemaPath := opts.SchemaPath
	if schemaPath == "" {
		schemaPath = OrderPlacedEnvelopedSchemaPath
	}

	producer := opts.Producer
	if producer == "" {
		producer = StorefrontProducer
	}

	partitionKey := opts.PartitionKey
	if partitionKey == "" {
		partitionKey = c.OrderRef
	}

	a := c.Address
	payload := OrderPlacedPayload{
		OrderRef:       c.OrderRef,
		SessionID:      c.SessionID,
		GatewayOrderID: c.GatewayOrderID,
		PaymentID:      c.PaymentID,
		PaymentMethod:  string(c.Payment.Method),
		Items:          make([]OrderPlacedItem, 0, len(c.Items)),
		Subtotal:       c.Summary.Subtotal,
		Tax:            c.Summary.Tax,
		TotalWithTax:   c.Summary.TotalWithTax,
		PaidOnline:     c.PaidOnline,
		PayOnDelivery:  c.PayOnDelivery,
		ShipTo: OrderPlacedAddress{
			Name:     a.Name,
			Phone:    a.Phone,
			Address:  a.Address,
			Locality: a.Locality,
			City:     a.City,
			State:    a.State,
			Pincode:  a.Pincode,
		},
		Timestamp: occurredAt,
	}

	for _, it := range c.Items {
		payload.Items = append(payload.Items, OrderPlacedItem{
			ProductID: it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	return EventEnvelope{
		EventName:     OrderPlacedEventName,
		EventVersion:  OrderPlacedEventVersion,
		EventID:       eventID,
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
		Producer:      producer,
		PartitionKey:  partitionKey,
		Sequence:      opts.Sequence,
		OccurredAt:    occurredAt,
		Schema:        schemaPath,
		Payload:       payload,
	}
}
