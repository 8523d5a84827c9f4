package bookings

import (
	"strings"
	"time"

	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	maxPetAge  = 40
)

// Booking is one scheduled service appointment. Bookings are never deleted;
// cancellation is a status.
type Booking struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"ownerId"`
	ServiceID     string              `json:"serviceId"`
	ServiceName   string              `json:"serviceName"`
	Date          string              `json:"date"`
	Time          string              `json:"time"`
	PetName       string              `json:"petName"`
	PetSpecies    string              `json:"petSpecies"`
	PetAge        int                 `json:"petAge"`
	Professional  string              `json:"professional,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Status        enums.BookingStatus `json:"status"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// CreditCost is the whole-credit price of a LuckCoins booking.
func (b Booking) CreditCost() int64 {
	return CreditCost(b.Price)
}

// EffectivePaymentStatus ignores the stored status for LuckCoins bookings,
// which are always settled at creation.
func (b Booking) EffectivePaymentStatus() enums.PaymentStatus {
	if b.PaymentMethod.UsesCredits() {
		return enums.PaymentStatusPaid
	}
	return b.PaymentStatus
}

// CreditCost floors a currency amount to whole LuckCoins.
func CreditCost(price decimal.Decimal) int64 {
	if price.IsNegative() {
		return 0
	}
	return price.Floor().IntPart()
}

// CreateInput is what a customer submits from the booking panel.
type CreateInput struct {
	ServiceID     string              `json:"serviceId" validate:"required"`
	Date          string              `json:"date" validate:"required"`
	Time          string              `json:"time" validate:"required"`
	PetName       string              `json:"petName" validate:"required,max=60"`
	PetSpecies    string              `json:"petSpecies" validate:"required,max=40"`
	PetAge        int                 `json:"petAge" validate:"gte=0,lte=40"`
	Professional  string              `json:"professional,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod" validate:"required"`
	Notes         string              `json:"notes,omitempty" validate:"max=500"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validate checks the input against the calendar and the domain rules. now
// bounds the earliest bookable day.
func (in CreateInput) validate(now time.Time) []FieldError {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if strings.TrimSpace(in.ServiceID) == "" {
		add("serviceId", "is required")
	}
	day, err := time.ParseInLocation(dateLayout, in.Date, now.Location())
	if err != nil {
		add("date", "must be YYYY-MM-DD")
	} else {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if day.Before(today) {
			add("date", "must not be in the past")
		}
	}
	if _, err := time.Parse(timeLayout, in.Time); err != nil {
		add("time", "must be HH:MM")
	}
	if strings.TrimSpace(in.PetName) == "" {
		add("petName", "is required")
	}
	if strings.TrimSpace(in.PetSpecies) == "" {
		add("petSpecies", "is required")
	}
	if in.PetAge < 0 || in.PetAge > maxPetAge {
		add("petAge", "must be between 0 and 40")
	}
	if !in.PaymentMethod.IsValid() {
		add("paymentMethod", "is not supported")
	}
	return errs
}
