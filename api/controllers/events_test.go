package controllers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

func TestEventsStreamsFilteredTopics(t *testing.T) {
	t.Parallel()

	bus := broadcast.NewBus(nil, nil)
	srv := httptest.NewServer(eventsWithHeartbeat(bus, time.Hour, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?topics=notify,credits-changed", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected preamble, got %q", line)
	}
	reader.ReadString('\n')

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount(broadcast.TopicNotify) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if bus.SubscriberCount(broadcast.TopicStorageChanged) != 0 {
		t.Fatalf("unrequested topic must not be subscribed")
	}

	bus.Publish(context.Background(), broadcast.StorageChanged{Key: "cart"})
	bus.Publish(context.Background(), broadcast.Notify{Message: "Order placed", Severity: enums.SeveritySuccess})

	event, _ := reader.ReadString('\n')
	data, _ := reader.ReadString('\n')
	if strings.TrimSpace(event) != "event: notify" {
		t.Fatalf("expected notify event, got %q", event)
	}
	if !strings.Contains(data, `"message":"Order placed"`) {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestEventsRejectsUnknownTopic(t *testing.T) {
	t.Parallel()

	resp := httptest.NewRecorder()
	Events(broadcast.NewBus(nil, nil), nil).ServeHTTP(resp, newJSONRequest(http.MethodGet, "/api/v1/events?topics=weather", ""))
	expectCode(t, resp, pkgerrors.CodeValidation)
}
