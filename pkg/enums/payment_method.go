package enums

import "fmt"

// PaymentMethod describes how a customer settles a booking or checkout.
type PaymentMethod string

const (
	PaymentMethodInstantTransfer PaymentMethod = "instant_transfer"
	PaymentMethodCreditCard      PaymentMethod = "credit_card"
	PaymentMethodDebitCard       PaymentMethod = "debit_card"
	PaymentMethodCash            PaymentMethod = "cash"
	PaymentMethodLuckCoins       PaymentMethod = "luck_coins"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodInstantTransfer,
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodCash,
	PaymentMethodLuckCoins,
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

// UsesCredits reports whether the method is paid entirely in LuckCoins.
func (p PaymentMethod) UsesCredits() bool {
	return p == PaymentMethodLuckCoins
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
