package checkout

import "errors"

type Code int

const (
	CodeInvalidArgument Code = iota + 1
	CodeFailedPrecondition
)

// ValidationError rejects a checkout command without changing state. Message
// is shown to the shopper as is.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newInvalidArgument(message string) *ValidationError {
	return &ValidationError{Code: CodeInvalidArgument, Message: message}
}

func newFailedPrecondition(message string) *ValidationError {
	return &ValidationError{Code: CodeFailedPrecondition, Message: message}
}

const (
	MsgSelectAddress      = "Please select a delivery address"
	MsgSelectPayment      = "Please select a payment method"
	MsgEmptyCart          = "Your cart is empty"
	MsgNothingOnline      = "Nothing left to pay online"
	MsgGatewayError       = "Something went wrong. Please try again."
	MsgPaymentFailed      = "Payment failed. Please try again."
	MsgVerificationFailed = "Payment verification failed"
	MsgPaymentCancelled   = "Payment cancelled"
	MsgUnexpectedError    = "An unexpected error occurred"
)

var (
	ErrNotProcessing     = errors.New("no payment in progress")
	ErrAlreadyProcessing = errors.New("a payment is already in progress")
	// ErrOrderMismatch means a callback named a gateway order other than the
	// one in progress.
	ErrOrderMismatch = errors.New("callback does not match the payment in progress")
	// ErrGateway wraps failures to open a payment with the gateway.
	ErrGateway = errors.New(MsgGatewayError)
)
