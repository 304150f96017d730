package domain

// Payment method identifiers accepted by checkout. No instrument data is held
// in checkout state.
const (
	PaymentCashOnDelivery = "cash_on_delivery"
	PaymentCreditCard     = "credit_card"
	PaymentPayPal         = "paypal"
)

// PaymentMethods returns the accepted payment methods.
func PaymentMethods() []string {
	return []string{PaymentCashOnDelivery, PaymentCreditCard, PaymentPayPal}
}

// IsValidPaymentMethod checks whether method is an accepted payment method.
func IsValidPaymentMethod(method string) bool {
	for _, m := range PaymentMethods() {
		if m == method {
			return true
		}
	}
	return false
}

// Status is the state of a checkout session.
type Status string

// Checkout states, in the order a session normally moves through them.
const (
	StatusEmpty            Status = "empty"
	StatusAddressing       Status = "addressing"
	StatusPaymentSelection Status = "payment_selection"
	StatusReadyToSubmit    Status = "ready_to_submit"
	StatusSubmitting       Status = "submitting"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// CanSubmit reports whether an order may be placed from this state. Failed
// sessions keep their data and accept a retry.
func (s Status) CanSubmit() bool {
	return s == StatusReadyToSubmit || s == StatusFailed
}

// CheckoutSnapshot is a detached copy of the checkout aggregate's fields.
type CheckoutSnapshot struct {
	ShippingAddress *ShippingAddress `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
	OrderItems      []LineItem       `json:"order_items"`
}

// Status derives the pre-submission state from the snapshot's fields.
func (s CheckoutSnapshot) Status() Status {
	switch {
	case len(s.OrderItems) == 0:
		return StatusEmpty
	case s.ShippingAddress == nil:
		return StatusAddressing
	case s.PaymentMethod == "":
		return StatusPaymentSelection
	default:
		return StatusReadyToSubmit
	}
}
