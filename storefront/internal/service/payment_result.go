package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	d "github.com/fjod/go_storefront/storefront/domain"
)

const resultPath = "/payment/success"

// ResultURL is where a finished attempt sends the shopper.
func ResultURL(orderID string, verified bool) string {
	status := "failed"
	if verified {
		status = "success"
	}
	return fmt.Sprintf("%s?order_id=%s&status=%s&verified=%t", resultPath, url.QueryEscape(orderID), status, verified)
}

type ResultState string

const (
	ResultSuccess ResultState = "success"
	ResultFailed  ResultState = "failed"
	ResultError   ResultState = "error"
)

// ResultParams are the query parameters of the payment result page.
type ResultParams struct {
	OrderID          string
	Status           string
	Verified         string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	Mode             string
	MihPayID         string
}

func ParseResultParams(q url.Values) ResultParams {
	return ResultParams{
		OrderID:          q.Get("order_id"),
		Status:           q.Get("status"),
		Verified:         q.Get("verified"),
		GatewayOrderID:   q.Get("razorpay_order_id"),
		GatewayPaymentID: q.Get("razorpay_payment_id"),
		GatewaySignature: q.Get("razorpay_signature"),
		Mode:             q.Get("mode"),
		MihPayID:         q.Get("mihpayid"),
	}
}

func (p ResultParams) hasGatewayParams() bool {
	return p.GatewayOrderID != "" && p.GatewayPaymentID != "" && p.GatewaySignature != ""
}

// PaymentResult is what the result page shows.
type PaymentResult struct {
	State         ResultState `json:"state"`
	OrderID       string      `json:"orderId,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`
	Message       string      `json:"message,omitempty"`
	// Verified is true when this resolution made a verification call.
	Verified bool `json:"verifiedNow"`
}

// PaymentResultResolver settles the result page for shoppers who arrive by
// URL instead of through the widget callback.
type PaymentResultResolver struct {
	payments PaymentsAPI
	carts    Carts
	log      *slog.Logger
}

func NewPaymentResultResolver(payments PaymentsAPI, carts Carts, log *slog.Logger) *PaymentResultResolver {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentResultResolver{payments: payments, carts: carts, log: log}
}

// Resolve tries, in order: an explicit verified marker (trusted, no network),
// full gateway redirect parameters with an order id (one verification call),
// and finally gives up with an error state. A verified=true marker clears the
// session's cart.
func (r *PaymentResultResolver) Resolve(ctx context.Context, sessionID string, p ResultParams) PaymentResult {
	res := PaymentResult{OrderID: p.OrderID, TransactionID: p.MihPayID}
	if res.TransactionID == "" {
		res.TransactionID = p.GatewayPaymentID
	}

	switch p.Verified {
	case "true":
		r.carts.Get(ctx, sessionID).Clear(ctx)
		res.State = ResultSuccess
		return res
	case "false":
		res.State = ResultFailed
		res.Message = "Payment verification failed"
		return res
	}

	if p.hasGatewayParams() && p.OrderID != "" {
		res.Verified = true
		result, err := r.payments.VerifyPayment(ctx, d.VerifyPaymentRequest{
			OrderID:          p.OrderID,
			GatewayPaymentID: p.GatewayPaymentID,
			GatewayOrderID:   p.GatewayOrderID,
			GatewaySignature: p.GatewaySignature,
		})
		switch {
		case err != nil:
			r.log.WarnContext(ctx, "payment verification error", "order_id", p.OrderID, "error", err)
			res.State = ResultFailed
			res.Message = "Payment verification failed"
		case !result.Success:
			res.State = ResultFailed
			res.Message = result.Message
			if res.Message == "" {
				res.Message = "Verification failed"
			}
		default:
			r.carts.Get(ctx, sessionID).Clear(ctx)
			res.State = ResultSuccess
			res.Message = "Payment verified"
		}
		return res
	}

	res.State = ResultError
	if p.OrderID == "" {
		res.Message = "Missing order reference"
	} else {
		res.Message = "Payment could not be verified"
	}
	return res
}
