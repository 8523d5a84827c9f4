package broadcast

import (
	"fmt"

	"github.com/angelmondragon/petshop-storefront/pkg/enums"
)

// Topic names a broadcast channel. The set is closed.
type Topic string

const (
	TopicStorageChanged    Topic = "storage-changed"
	TopicAuthChanged       Topic = "auth-changed"
	TopicLoggedOut         Topic = "logged-out"
	TopicCreditsChanged    Topic = "credits-changed"
	TopicOpenWishlistPanel Topic = "open-wishlist-panel"
	TopicOpenBookingPanel  Topic = "open-booking-panel"
	TopicNotify            Topic = "notify"
)

var validTopics = []Topic{
	TopicStorageChanged,
	TopicAuthChanged,
	TopicLoggedOut,
	TopicCreditsChanged,
	TopicOpenWishlistPanel,
	TopicOpenBookingPanel,
	TopicNotify,
}

func (t Topic) String() string {
	return string(t)
}

func (t Topic) IsValid() bool {
	for _, candidate := range validTopics {
		if candidate == t {
			return true
		}
	}
	return false
}

// Topics returns every known topic.
func Topics() []Topic {
	out := make([]Topic, len(validTopics))
	copy(out, validTopics)
	return out
}

// ParseTopic converts raw input into a Topic.
func ParseTopic(value string) (Topic, error) {
	for _, candidate := range validTopics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid topic %q", value)
}

// Event is a payload bound to exactly one topic. Only this package defines events.
type Event interface {
	Topic() Topic
	sealed()
}

// StorageChanged reports that KVS keys were written or deleted. One mutation
// touching several keys is one event: Key is the primary key and Related
// lists the other keys written alongside it.
type StorageChanged struct {
	Key     string   `json:"key"`
	Related []string `json:"related,omitempty"`
}

// KeysChanged builds a single StorageChanged for keys, the first one primary.
func KeysChanged(keys ...string) StorageChanged {
	if len(keys) == 0 {
		return StorageChanged{}
	}
	e := StorageChanged{Key: keys[0]}
	if len(keys) > 1 {
		e.Related = append([]string(nil), keys[1:]...)
	}
	return e
}

// Keys returns every key the event covers.
func (e StorageChanged) Keys() []string {
	if e.Key == "" {
		return append([]string(nil), e.Related...)
	}
	return append([]string{e.Key}, e.Related...)
}

// Touches reports whether key is among the event's keys.
func (e StorageChanged) Touches(key string) bool {
	for _, k := range e.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// AuthChanged reports a new current principal.
type AuthChanged struct {
	PrincipalID string     `json:"principalId"`
	Role        enums.Role `json:"role"`
	Guest       bool       `json:"guest"`
}

type LoggedOut struct{}

// CreditsChanged carries the balance after a successful ledger mutation.
type CreditsChanged struct {
	Balance int64 `json:"balance"`
}

type OpenWishlistPanel struct{}

type OpenBookingPanel struct {
	ServiceID string `json:"serviceId"`
}

// Notify is a user-visible toast.
type Notify struct {
	Message  string         `json:"message"`
	Severity enums.Severity `json:"severity"`
}

func (StorageChanged) Topic() Topic    { return TopicStorageChanged }
func (AuthChanged) Topic() Topic       { return TopicAuthChanged }
func (LoggedOut) Topic() Topic         { return TopicLoggedOut }
func (CreditsChanged) Topic() Topic    { return TopicCreditsChanged }
func (OpenWishlistPanel) Topic() Topic { return TopicOpenWishlistPanel }
func (OpenBookingPanel) Topic() Topic  { return TopicOpenBookingPanel }
func (Notify) Topic() Topic            { return TopicNotify }

func (StorageChanged) sealed()    {}
func (AuthChanged) sealed()       {}
func (LoggedOut) sealed()         {}
func (CreditsChanged) sealed()    {}
func (OpenWishlistPanel) sealed() {}
func (OpenBookingPanel) sealed()  {}
func (Notify) sealed()            {}
