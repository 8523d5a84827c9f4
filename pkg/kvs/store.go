// Package kvs is the durable string-keyed store that holds all storefront
// session state. Values are opaque strings; callers usually go through the
// JSON helpers, which treat undecodable values as absent.
package kvs

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// Store is a synchronous persistent map. There are no cross-key transactions.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON decodes the value stored at key into T. A missing key and a value
// that fails to decode both report found=false; the latter is logged at warn.
func GetJSON[T any](ctx context.Context, store Store, key string, logg *logger.Logger) (T, bool, error) {
	var out T
	raw, found, err := store.Get(ctx, key)
	if err != nil || !found {
		return out, false, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if logg != nil {
			logCtx := logg.WithFields(logg.WithKey(ctx, key), map[string]any{"reason": err.Error()})
			logg.Warn(logCtx, "discarding undecodable kvs value")
		}
		var zero T
		return zero, false, nil
	}
	return out, true, nil
}

// SetJSON encodes value and stores it at key.
func SetJSON(ctx context.Context, store Store, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload))
}
