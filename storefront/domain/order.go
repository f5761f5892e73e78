package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

type PaymentMethod string

const PaymentMethodOnline PaymentMethod = "online"

type ShippingAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// CheckoutForm is what the shopper submits on the checkout page.
type CheckoutForm struct {
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	Pincode       string        `json:"pincode"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
}

func (f CheckoutForm) ShippingAddress() ShippingAddress {
	return ShippingAddress{
		Name:    f.Name,
		Address: f.Address,
		City:    f.City,
		State:   f.State,
		Pincode: f.Pincode,
		Phone:   f.Phone,
	}
}

func (f CheckoutForm) Customer() CustomerDetails {
	return CustomerDetails{Name: f.Name, Email: f.Email, Phone: f.Phone}
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	Products        []OrderItem     `json:"products"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
}

// Order is the backend's record. The storefront never mutates it.
type Order struct {
	ID              string          `json:"_id"`
	Products        []OrderItem     `json:"products"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	OrderStatus     OrderStatus     `json:"orderStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
}
