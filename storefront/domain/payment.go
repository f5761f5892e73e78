package domain

import "context"

type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreatePaymentRequest struct {
	OrderID         string          `json:"orderId"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
}

type GatewayCustomer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// PaymentSession is the gateway's pending payment for one store order.
// Amount is in the currency's minor unit.
type PaymentSession struct {
	GatewayOrderID string          `json:"razorpay_order_id"`
	KeyID          string          `json:"key_id"`
	Amount         int64           `json:"razorpay_amount"`
	Currency       string          `json:"currency"`
	Customer       GatewayCustomer `json:"customer"`
}

// GatewayResponse is what the hosted widget hands to its completion handler.
type GatewayResponse struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

func (r GatewayResponse) Complete() bool {
	return r.PaymentID != "" && r.OrderID != "" && r.Signature != ""
}

type VerifyPaymentRequest struct {
	OrderID          string `json:"orderId"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewaySignature string `json:"razorpay_signature"`
}

type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type WidgetPrefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type WidgetTheme struct {
	Color string `json:"color"`
}

// PaymentHandler receives the gateway's completion payload and returns the
// checkout attempt it settled.
type PaymentHandler func(ctx context.Context, resp GatewayResponse) (Attempt, error)

// WidgetOptions are the constructor arguments of the gateway's hosted checkout.
type WidgetOptions struct {
	Key         string         `json:"key"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	OrderID     string         `json:"order_id"`
	Prefill     WidgetPrefill  `json:"prefill"`
	Theme       WidgetTheme    `json:"theme"`
	Handler     PaymentHandler `json:"-"`
}
