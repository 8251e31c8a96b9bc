package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// WidgetRequest asks the payment gateway to prepare a hosted payment.
// Payer fields come from the selected delivery address.
type WidgetRequest struct {
	AmountMinor  int64
	Currency     string
	Receipt      string
	PayerName    string
	PayerContact string
	ThemeColor   string
	Notes        map[string]string
}

// WidgetSession is the gateway order the browser widget will pay.
type WidgetSession struct {
	OrderID     string
	AmountMinor int64
	Currency    string
}

type Widget interface {
	Open(ctx context.Context, req WidgetRequest) (WidgetSession, error)
}

// Verifier checks the signature the gateway hands the browser on success.
type Verifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// HMACVerifier accepts hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) Verify(orderID, paymentID, signature string) bool {
	if len(v.secret) == 0 || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(v.Sign(orderID, paymentID)), []byte(signature))
}

// Merchant holds the static widget settings.
type Merchant struct {
	KeyID       string
	Name        string
	Description string
	Image       string
	ThemeColor  string
	Currency    string
}

func DefaultMerchant() Merchant {
	return Merchant{
		Name:        "Skino Store",
		Description: "Purchase from Skino",
		Image:       "/logo.svg",
		ThemeColor:  "#47126B",
		Currency:    "INR",
	}
}

// WidgetConfig is handed to the browser to open the hosted payment widget.
type WidgetConfig struct {
	Key         string      `json:"key"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	OrderID     string      `json:"order_id"`
	Prefill     Prefill     `json:"prefill"`
	Theme       Theme       `json:"theme"`
	Method      string      `json:"method,omitempty"`
	UPI         *UPIOptions `json:"upi,omitempty"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Theme struct {
	Color string `json:"color"`
}

type UPIOptions struct {
	Flow string `json:"flow"`
	App  string `json:"app,omitempty"`
}
