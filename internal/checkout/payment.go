package checkout

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

type Method string

const (
	MethodUPI Method = "upi"
	MethodCOD Method = "cod"
)

type UPIApp string

const (
	UPIGooglePay UPIApp = "google-pay"
	UPIPhonePe   UPIApp = "phonepe"
	UPIPaytm     UPIApp = "paytm"
	UPIOther     UPIApp = "other-upi"
)

// intentApp is the app name the widget's UPI intent flow expects.
func (a UPIApp) intentApp() string {
	switch a {
	case UPIGooglePay:
		return "gpay"
	case UPIPhonePe:
		return "phonepe"
	case UPIPaytm:
		return "paytm"
	}
	return ""
}

func (a UPIApp) valid() bool {
	switch a {
	case UPIGooglePay, UPIPhonePe, UPIPaytm, UPIOther:
		return true
	}
	return false
}

// PaymentSelection is UPI with an app, or cash on delivery. Partial COD pays
// CODAmount at the door and the rest online.
type PaymentSelection struct {
	Method     Method          `json:"method"`
	UPIApp     UPIApp          `json:"upiApp,omitempty"`
	PartialCOD bool            `json:"partialCod,omitempty"`
	CODAmount  decimal.Decimal `json:"codAmount"`
}

// Validate checks the selection against the order's total with tax.
func (p PaymentSelection) Validate(totalWithTax decimal.Decimal) error {
	switch p.Method {
	case MethodUPI:
		if !p.UPIApp.valid() {
			return newInvalidArgument("Please choose a UPI app")
		}
	case MethodCOD:
		if !p.PartialCOD {
			return nil
		}
		if p.CODAmount.IsNegative() {
			return newInvalidArgument("Cash on delivery amount cannot be negative")
		}
		if p.CODAmount.GreaterThan(pricing.Display(totalWithTax)) {
			return newInvalidArgument("Cash on delivery amount cannot exceed the order total")
		}
	default:
		return newInvalidArgument(MsgSelectPayment)
	}
	return nil
}

// OnlineAmount is what the payment widget should collect.
func (p PaymentSelection) OnlineAmount(totalWithTax decimal.Decimal) decimal.Decimal {
	if p.Method == MethodCOD && p.PartialCOD {
		return pricing.OnlineRemainder(totalWithTax, p.CODAmount)
	}
	return totalWithTax
}

// ClientInfo describes the browser starting a payment.
type ClientInfo struct {
	Mobile bool
}

var mobileUserAgent = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

func ClientFromUserAgent(ua string) ClientInfo {
	return ClientInfo{Mobile: mobileUserAgent.MatchString(ua)}
}
