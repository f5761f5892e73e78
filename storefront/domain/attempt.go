package domain

import "time"

// Attempt is the externally visible state of one checkout attempt.
type Attempt struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"sessionId"`
	Status         CheckoutStatus  `json:"status"`
	OrderID        string          `json:"orderId,omitempty"`
	PaymentSession *PaymentSession `json:"paymentSession,omitempty"`
	Widget         *WidgetOptions  `json:"widget,omitempty"`
	RedirectURL    string          `json:"redirectUrl,omitempty"`
	ErrorKind      string          `json:"errorKind,omitempty"`
	ErrorMessage   string          `json:"error,omitempty"`
	Deadline       time.Time       `json:"deadline,omitzero"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// CheckoutEvent is published when an attempt reaches a terminal status.
type CheckoutEvent struct {
	EventID    string         `json:"event_id"`
	AttemptID  string         `json:"attempt_id"`
	SessionID  string         `json:"session_id"`
	OrderID    string         `json:"order_id,omitempty"`
	Status     CheckoutStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Amount     int64          `json:"amount,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e CheckoutEvent) Type() string {
	if e.Status == CheckoutStatusSucceeded {
		return "CheckoutSucceeded"
	}
	return "CheckoutFailed"
}
