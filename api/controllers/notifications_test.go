package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/petshop-storefront/internal/notifications"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
)

func TestNotificationsListAndMarkRead(t *testing.T) {
	t.Parallel()

	bus := broadcast.NewBus(nil, nil)
	feed := notifications.NewFeed(10)
	detach := feed.Attach(bus)
	defer detach()

	bus.Publish(context.Background(), broadcast.Notify{Message: "Order placed", Severity: enums.SeveritySuccess})
	bus.Publish(context.Background(), broadcast.Notify{Message: "dependency unavailable", Severity: enums.SeverityError})

	resp := httptest.NewRecorder()
	NotificationsList(feed, nil).ServeHTTP(resp, newJSONRequest(http.MethodGet, "/api/v1/notifications", ""))
	body := decodeData[notificationListResponse](t, resp)
	if len(body.Items) != 2 || body.Unread != 2 {
		t.Fatalf("unexpected feed %+v", body)
	}

	resp = httptest.NewRecorder()
	NotificationsMarkAllRead(feed, nil).ServeHTTP(resp, newJSONRequest(http.MethodPost, "/api/v1/notifications/read", ""))
	if got := decodeData[map[string]int](t, resp)["updated"]; got != 2 {
		t.Fatalf("expected 2 updated, got %d", got)
	}

	resp = httptest.NewRecorder()
	NotificationsList(feed, nil).ServeHTTP(resp, newJSONRequest(http.MethodGet, "/api/v1/notifications", ""))
	if body := decodeData[notificationListResponse](t, resp); body.Unread != 0 {
		t.Fatalf("expected all read, got %d unread", body.Unread)
	}
}
