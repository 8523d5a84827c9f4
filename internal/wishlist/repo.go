// Package wishlist persists liked product ids in insertion order.
package wishlist

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// Repository owns the "wishlist" key. Toggle is the only mutator besides Clear.
type Repository struct {
	mu    sync.Mutex
	store kvs.Store
	pub   broadcast.Publisher
	logg  *logger.Logger
}

func NewRepository(store kvs.Store, pub broadcast.Publisher, logg *logger.Logger) (*Repository, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if pub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "publisher is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{store: store, pub: pub, logg: logg}, nil
}

// Get returns product ids in the order they were added.
func (r *Repository) Get(ctx context.Context) []string {
	ids, err := r.load(ctx)
	if err != nil {
		r.logg.Error(r.logg.WithKey(ctx, keys.Wishlist), "read wishlist", err)
		return []string{}
	}
	return ids
}

// Contains reports membership.
func (r *Repository) Contains(ctx context.Context, productID string) bool {
	for _, id := range r.Get(ctx) {
		if id == productID {
			return true
		}
	}
	return false
}

// Toggle adds the product when absent and removes it when present. It
// returns the membership after the call.
func (r *Repository) Toggle(ctx context.Context, productID string) (bool, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	r.mu.Lock()
	current, err := r.load(ctx)
	if err != nil {
		r.mu.Unlock()
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read wishlist")
	}

	next := make([]string, 0, len(current)+1)
	member := true
	for _, existing := range current {
		if existing == id {
			member = false
			continue
		}
		next = append(next, existing)
	}
	if member {
		next = append(next, id)
	}

	if err := kvs.SetJSON(ctx, r.store, keys.Wishlist, next); err != nil {
		r.mu.Unlock()
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write wishlist")
	}
	r.mu.Unlock()

	r.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.Wishlist})
	return member, nil
}

// Clear deletes the wishlist key.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	err := r.store.Delete(ctx, keys.Wishlist)
	r.mu.Unlock()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear wishlist")
	}
	r.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.Wishlist})
	return nil
}

// RequestPanel asks every surface to open the wishlist panel.
func (r *Repository) RequestPanel(ctx context.Context) {
	r.pub.Publish(ctx, broadcast.OpenWishlistPanel{})
}

func (r *Repository) load(ctx context.Context) ([]string, error) {
	ids, found, err := kvs.GetJSON[[]string](ctx, r.store, keys.Wishlist, r.logg)
	if err != nil {
		return nil, err
	}
	if !found {
		return []string{}, nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
