// Package keys names every KVS key the storefront persists.
package keys

const (
	Cart          = "cart"
	Wishlist      = "wishlist"
	User          = "user"
	UserCredits   = "userCredits"
	CheckoutCart  = "checkout_cart"
	IsGuest       = "isGuest"
	GuestID       = "guestId"
	BookingsCache = "bookings_cache"
	BookingDraft  = "booking_draft"
)

// SessionScoped lists the keys removed at logout.
func SessionScoped() []string {
	return []string{
		User,
		UserCredits,
		Wishlist,
		Cart,
		CheckoutCart,
		IsGuest,
		GuestID,
		BookingsCache,
		BookingDraft,
	}
}
