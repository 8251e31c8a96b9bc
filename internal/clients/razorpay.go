package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
)

const DefaultRazorpayURL = "https://api.razorpay.com"

// RazorpayClient creates gateway orders that the hosted checkout widget pays.
type RazorpayClient struct {
	client    *Client
	keyID     string
	keySecret string
}

func NewRazorpayClient(baseURL, keyID, keySecret string, httpClient *http.Client) (*RazorpayClient, error) {
	if baseURL == "" {
		baseURL = DefaultRazorpayURL
	}
	c, err := NewClient("razorpay", baseURL, httpClient)
	if err != nil {
		return nil, err
	}
	return &RazorpayClient{client: c, keyID: keyID, keySecret: keySecret}, nil
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// GatewayError is a non-2xx answer from the gateway.
type GatewayError struct {
	Status      int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.Status)
	}
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.Status, e.Code, e.Description)
}

// Open creates an order for req.AmountMinor.
func (r *RazorpayClient) Open(ctx context.Context, req checkout.WidgetRequest) (checkout.WidgetSession, error) {
	headers := http.Header{}
	headers.Set("Authorization", r.basicAuth())

	resp, err := r.client.DoJSON(ctx, http.MethodPost, "/v1/orders", createOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    orderNotes(req),
	}, headers)
	if err != nil {
		return checkout.WidgetSession{}, fmt.Errorf("create order: %w", err)
	}

	if !resp.OK() {
		gerr := &GatewayError{Status: resp.Status}
		var er errorResponse
		if json.Unmarshal(resp.Body, &er) == nil {
			gerr.Code = er.Error.Code
			gerr.Description = er.Error.Description
		}
		return checkout.WidgetSession{}, gerr
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return checkout.WidgetSession{}, fmt.Errorf("decode order response: %w", err)
	}
	if strings.TrimSpace(order.ID) == "" {
		return checkout.WidgetSession{}, errors.New("decode order response: missing order id")
	}

	return checkout.WidgetSession{
		OrderID:     order.ID,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
	}, nil
}

// orderNotes copies req.Notes and adds the payer so the order can be traced
// back to the shopper in the gateway dashboard.
func orderNotes(req checkout.WidgetRequest) map[string]string {
	notes := make(map[string]string, len(req.Notes)+2)
	for k, v := range req.Notes {
		notes[k] = v
	}
	if req.PayerName != "" {
		notes["payer_name"] = req.PayerName
	}
	if req.PayerContact != "" {
		notes["payer_contact"] = req.PayerContact
	}
	if len(notes) == 0 {
		return nil
	}
	return notes
}

func (r *RazorpayClient) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(r.keyID+":"+r.keySecret))
}
