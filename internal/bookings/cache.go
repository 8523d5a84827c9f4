package bookings

import (
	"context"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// cachedList is the value stored under bookings_cache.
type cachedList struct {
	OwnerID   string    `json:"ownerId"`
	Bookings  []Booking `json:"bookings"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Draft is the value stored under booking_draft when a surface asks to book.
type Draft struct {
	ServiceID   string    `json:"serviceId"`
	RequestedAt time.Time `json:"requestedAt"`
}

type cache struct {
	store kvs.Store
	logg  *logger.Logger
}

func (c cache) get(ctx context.Context, ownerID string) ([]Booking, bool) {
	list, found, err := kvs.GetJSON[cachedList](ctx, c.store, keys.BookingsCache, c.logg)
	if err != nil {
		c.logg.Error(c.logg.WithKey(ctx, keys.BookingsCache), "read bookings cache", err)
		return nil, false
	}
	if !found || list.OwnerID != ownerID {
		return nil, false
	}
	return list.Bookings, true
}

func (c cache) put(ctx context.Context, ownerID string, list []Booking, at time.Time) error {
	return kvs.SetJSON(ctx, c.store, keys.BookingsCache, cachedList{
		OwnerID:   ownerID,
		Bookings:  list,
		FetchedAt: at.UTC(),
	})
}

// upsert replaces or prepends b in the owner's cached list. It is a no-op
// when the cache belongs to someone else or is absent.
func (c cache) upsert(ctx context.Context, b Booking, at time.Time) (bool, error) {
	list, ok := c.get(ctx, b.OwnerID)
	if !ok {
		return false, nil
	}
	next := make([]Booking, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.ID == b.ID {
			next = append(next, b)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append([]Booking{b}, next...)
	}
	sortNewestFirst(next)
	return true, c.put(ctx, b.OwnerID, next, at)
}

func (c cache) draft(ctx context.Context) (Draft, bool) {
	d, found, err := kvs.GetJSON[Draft](ctx, c.store, keys.BookingDraft, c.logg)
	if err != nil || !found || d.ServiceID == "" {
		return Draft{}, false
	}
	return d, true
}
