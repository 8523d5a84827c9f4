package controllers

import (
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/internal/notifications"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// NotificationFeed is the recent-toast feed.
type NotificationFeed interface {
	List() []notifications.Entry
	MarkAllRead() int
}

type notificationListResponse struct {
	Items  []notifications.Entry `json:"items"`
	Unread int                   `json:"unread"`
}

func NotificationsList(feed NotificationFeed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			unavailable(w, r, logg, "notification feed")
			return
		}
		items := feed.List()
		unread := 0
		for _, e := range items {
			if !e.Read {
				unread++
			}
		}
		if items == nil {
			items = []notifications.Entry{}
		}
		responses.WriteSuccess(w, notificationListResponse{Items: items, Unread: unread})
	}
}

func NotificationsMarkAllRead(feed NotificationFeed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			unavailable(w, r, logg, "notification feed")
			return
		}
		responses.WriteSuccess(w, map[string]int{"updated": feed.MarkAllRead()})
	}
}
