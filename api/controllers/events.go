package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

const (
	eventBuffer       = 32
	heartbeatInterval = 25 * time.Second
)

// Subscriber registers a handler on topics of the change broadcaster.
type Subscriber interface {
	Subscribe(topic broadcast.Topic, handler broadcast.Handler) func()
}

// Events streams broadcaster events as server-sent events. ?topics= narrows
// the stream to a comma separated list. A slow client drops events rather
// than stalling the publisher.
func Events(bus Subscriber, logg *logger.Logger) http.HandlerFunc {
	return eventsWithHeartbeat(bus, heartbeatInterval, logg)
}

func eventsWithHeartbeat(bus Subscriber, every time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bus == nil {
			unavailable(w, r, logg, "event stream")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}
		topics, err := parseTopics(r.URL.Query().Get("topics"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		events := make(chan broadcast.Event, eventBuffer)
		handler := func(_ context.Context, e broadcast.Event) {
			select {
			case events <- e:
			default:
				if logg != nil {
					logg.Warn(logg.WithTopic(ctx, e.Topic().String()), "events.dropped")
				}
			}
		}
		for _, topic := range topics {
			unsubscribe := bus.Subscribe(topic, handler)
			defer unsubscribe()
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case e := <-events:
				if err := writeEvent(w, e); err != nil {
					if logg != nil {
						logg.Error(logg.WithTopic(ctx, e.Topic().String()), "events.encode", err)
					}
					continue
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e broadcast.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Topic(), payload)
	return err
}

func parseTopics(raw string) ([]broadcast.Topic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return broadcast.Topics(), nil
	}
	seen := map[broadcast.Topic]bool{}
	var out []broadcast.Topic
	for _, part := range strings.Split(raw, ",") {
		topic, err := broadcast.ParseTopic(strings.TrimSpace(part))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown topic").WithDetails(map[string]any{"topic": part})
		}
		if !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out, nil
}
