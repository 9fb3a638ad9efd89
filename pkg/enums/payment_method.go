package enums

import "fmt"

// PaymentMethod describes how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodPaystack         PaymentMethod = "paystack"
	PaymentMethodCashOnPickup     PaymentMethod = "cash_on_pickup"
	PaymentMethodTransferOnPickup PaymentMethod = "transfer_on_pickup"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPaystack,
	PaymentMethodCashOnPickup,
	PaymentMethodTransferOnPickup,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsGateway reports whether payment is collected online before pickup.
func (p PaymentMethod) IsGateway() bool {
	return p == PaymentMethodPaystack
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
