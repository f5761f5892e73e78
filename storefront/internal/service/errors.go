package service

import (
	"errors"
	"strings"
)

var (
	ErrValidation                = errors.New("checkout validation failed")
	ErrOrderCreation             = errors.New("order creation failed")
	ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrVerification              = errors.New("payment verification failed")
	ErrGatewayTimeout            = errors.New("payment window expired")
	ErrAttemptAbandoned          = errors.New("checkout abandoned for a newer attempt")

	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress  = errors.New("a checkout for this cart is already in progress")
	ErrAttemptNotFound     = errors.New("checkout attempt not found")
	ErrAttemptNotAwaiting  = errors.New("checkout attempt is not awaiting payment")
	IllegalTransitionError = errors.New("illegal transition of checkout status")
)

// CheckoutError ends an attempt. Kind is one of the sentinel errors above and
// Message is what the shopper is shown.
type CheckoutError struct {
	Kind    error
	Message string
	Fields  []string
	Err     error
}

func (e *CheckoutError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CheckoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func kindName(kind error) string {
	switch {
	case errors.Is(kind, ErrValidation):
		return "validation"
	case errors.Is(kind, ErrOrderCreation):
		return "order_creation"
	case errors.Is(kind, ErrPaymentGatewayUnavailable):
		return "payment_gateway_unavailable"
	case errors.Is(kind, ErrVerification):
		return "verification"
	case errors.Is(kind, ErrGatewayTimeout):
		return "gateway_timeout"
	case errors.Is(kind, ErrAttemptAbandoned):
		return "abandoned"
	default:
		return "internal"
	}
}
