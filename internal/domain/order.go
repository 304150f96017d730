package domain

import "encoding/json"

// Order and payment status values sent with a new order.
const (
	OrderStatusProcessing = "processing"
	PaymentStatusPending  = "Pending"
)

// OrderRequest is the payload accepted by the order creation endpoint.
type OrderRequest struct {
	Items           []OrderItem  `json:"items"`
	User            string       `json:"user"`
	ShippingAddress OrderAddress `json:"shippingAddress"`
	TotalPrice      float64      `json:"totalPrice"`
	Status          string       `json:"status"`
	PaymentInfo     PaymentInfo  `json:"paymentInfo"`
}

// OrderAddress is the shipping address in the order service's field naming.
type OrderAddress struct {
	Country     string `json:"country"`
	State       string `json:"state,omitempty"`
	City        string `json:"city"`
	Street      string `json:"street"`
	ZipCode     string `json:"zipCode"`
	AddressType string `json:"addressType,omitempty"`
}

// NewOrderAddress converts a checkout shipping address.
func NewOrderAddress(a ShippingAddress) OrderAddress {
	return OrderAddress{
		Country:     a.Country,
		State:       a.State,
		City:        a.City,
		Street:      a.Street,
		ZipCode:     a.ZipCode,
		AddressType: a.AddressType,
	}
}

// OrderItem is a line of an order request.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	VendorID  string  `json:"vendorId"`
}

// PaymentInfo describes how the order will be paid.
type PaymentInfo struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

// Order is the order returned by the creation endpoint. Raw keeps the full
// response body for callers that need fields not modelled here.
type Order struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	TotalPrice float64         `json:"totalPrice"`
	Raw        json.RawMessage `json:"-"`
}

// UnmarshalJSON accepts both "id" and "_id" as the order identifier.
func (o *Order) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID         string  `json:"id"`
		MongoID    string  `json:"_id"`
		Status     string  `json:"status"`
		TotalPrice float64 `json:"totalPrice"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	o.ID = wire.ID
	if o.ID == "" {
		o.ID = wire.MongoID
	}
	o.Status = wire.Status
	o.TotalPrice = wire.TotalPrice
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}
