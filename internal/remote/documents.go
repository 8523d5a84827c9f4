package remote

import (
	"fmt"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/bookings"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// userDoc is the users/{uid} document.
type userDoc struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	Avatar    string    `firestore:"avatar"`
	Role      string    `firestore:"role"`
	Credits   *int64    `firestore:"credits,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d userDoc) profile(uid string) users.Profile {
	return users.Profile{
		ID:      uid,
		Name:    d.Name,
		Email:   d.Email,
		Avatar:  d.Avatar,
		Role:    d.Role,
		Credits: d.Credits,
	}
}

// bookingDoc is the bookings/{id} document. Prices are stored as decimal
// strings so no float rounding reaches the ledger.
type bookingDoc struct {
	OwnerID       string    `firestore:"ownerId"`
	ServiceID     string    `firestore:"serviceId"`
	ServiceName   string    `firestore:"serviceName"`
	Date          string    `firestore:"date"`
	Time          string    `firestore:"time"`
	PetName       string    `firestore:"petName"`
	PetSpecies    string    `firestore:"petSpecies"`
	PetAge        int64     `firestore:"petAge"`
	Professional  string    `firestore:"professional,omitempty"`
	Price         string    `firestore:"price"`
	PaymentMethod string    `firestore:"paymentMethod"`
	PaymentStatus string    `firestore:"paymentStatus"`
	Status        string    `firestore:"status"`
	Notes         string    `firestore:"notes,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func bookingToDoc(b bookings.Booking) bookingDoc {
	return bookingDoc{
		OwnerID:       b.OwnerID,
		ServiceID:     b.ServiceID,
		ServiceName:   b.ServiceName,
		Date:          b.Date,
		Time:          b.Time,
		PetName:       b.PetName,
		PetSpecies:    b.PetSpecies,
		PetAge:        int64(b.PetAge),
		Professional:  b.Professional,
		Price:         b.Price.StringFixed(2),
		PaymentMethod: b.PaymentMethod.String(),
		PaymentStatus: b.PaymentStatus.String(),
		Status:        b.Status.String(),
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt.UTC(),
	}
}

func (d bookingDoc) booking(id string) (bookings.Booking, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return bookings.Booking{}, fmt.Errorf("booking %s: price %q: %w", id, d.Price, err)
	}
	method, err := enums.ParsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return bookings.Booking{}, fmt.Errorf("booking %s: %w", id, err)
	}
	status, err := enums.ParseBookingStatus(d.Status)
	if err != nil {
		return bookings.Booking{}, fmt.Errorf("booking %s: %w", id, err)
	}
	payment, err := enums.ParsePaymentStatus(d.PaymentStatus)
	if err != nil {
		payment = enums.PaymentStatusPending
	}
	return bookings.Booking{
		ID:            id,
		OwnerID:       d.OwnerID,
		ServiceID:     d.ServiceID,
		ServiceName:   d.ServiceName,
		Date:          d.Date,
		Time:          d.Time,
		PetName:       d.PetName,
		PetSpecies:    d.PetSpecies,
		PetAge:        int(d.PetAge),
		Professional:  d.Professional,
		Price:         price,
		PaymentMethod: method,
		PaymentStatus: payment,
		Status:        status,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
	}, nil
}
