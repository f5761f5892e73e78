package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle                   CheckoutStatus = "IDLE"
	CheckoutStatusValidating             CheckoutStatus = "VALIDATING"
	CheckoutStatusCreatingOrder          CheckoutStatus = "CREATING_ORDER"
	CheckoutStatusCreatingPaymentSession CheckoutStatus = "CREATING_PAYMENT_SESSION"
	CheckoutStatusAwaitingGatewayUI      CheckoutStatus = "AWAITING_GATEWAY_UI"
	CheckoutStatusVerifyingPayment       CheckoutStatus = "VERIFYING_PAYMENT"
	CheckoutStatusSucceeded              CheckoutStatus = "SUCCEEDED"
	CheckoutStatusFailed                 CheckoutStatus = "FAILED"
)

var checkoutTransitions = map[CheckoutStatus]CheckoutStatus{
	CheckoutStatusIdle:                   CheckoutStatusValidating,
	CheckoutStatusValidating:             CheckoutStatusCreatingOrder,
	CheckoutStatusCreatingOrder:          CheckoutStatusCreatingPaymentSession,
	CheckoutStatusCreatingPaymentSession: CheckoutStatusAwaitingGatewayUI,
	CheckoutStatusAwaitingGatewayUI:      CheckoutStatusVerifyingPayment,
	CheckoutStatusVerifyingPayment:       CheckoutStatusSucceeded,
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSucceeded || s == CheckoutStatusFailed
}

// InFlight reports whether a backend call may be running for an attempt in s.
func (s CheckoutStatus) InFlight() bool {
	switch s {
	case CheckoutStatusValidating, CheckoutStatusCreatingOrder,
		CheckoutStatusCreatingPaymentSession, CheckoutStatusVerifyingPayment:
		return true
	}
	return false
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo: every non-terminal status may fail, otherwise only the next
// step of the checkout sequence is allowed.
func CanTransitionTo(from, to CheckoutStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == CheckoutStatusFailed {
		return true
	}
	next, ok := checkoutTransitions[from]
	return ok && next == to
}
