package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
)

// Consumer watches session events and turns them into toasts.
type Consumer struct {
	bus      *broadcast.Bus
	notifier *Notifier
	feed     *Feed
}

func NewConsumer(bus *broadcast.Bus, notifier *Notifier, feed *Feed) (*Consumer, error) {
	if bus == nil {
		return nil, fmt.Errorf("broadcast bus required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Consumer{bus: bus, notifier: notifier, feed: feed}, nil
}

// Start registers the subscriptions and returns a function that removes them.
func (c *Consumer) Start() func() {
	unsubs := []func(){
		broadcast.On(c.bus, func(ctx context.Context, e broadcast.AuthChanged) {
			if e.Guest {
				c.notifier.Success(ctx, "Browsing as guest")
				return
			}
			c.notifier.Success(ctx, "Signed in")
		}),
		broadcast.On(c.bus, func(ctx context.Context, _ broadcast.LoggedOut) {
			if c.feed != nil {
				c.feed.Reset()
			}
			c.notifier.Success(ctx, "Signed out")
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
