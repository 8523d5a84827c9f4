// Package cart persists the shopping cart in the KVS.
package cart

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

// Repository owns the "cart" key. Mutators are read-modify-write under a
// mutex and publish storage-changed once the write is visible.
type Repository struct {
	mu    sync.Mutex
	store kvs.Store
	pub   broadcast.Publisher
	logg  *logger.Logger
}

// NewRepository wires a cart repository.
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

// Get returns the persisted cart. It never fails: a missing, corrupt or
// unreadable value yields an empty cart.
func (r *Repository) Get(ctx context.Context) Cart {
	c, err := r.load(ctx)
	if err != nil {
		r.logg.Error(r.logg.WithKey(ctx, keys.Cart), "read cart", err)
		return Cart{}
	}
	return c
}

// AddItem increments the product's quantity by one, creating it at one.
func (r *Repository) AddItem(ctx context.Context, productID string) (Cart, error) {
	return r.mutate(ctx, productID, func(c Cart, id string) {
		c[id]++
	})
}

// RemoveItem deletes the product regardless of its quantity.
func (r *Repository) RemoveItem(ctx context.Context, productID string) (Cart, error) {
	return r.mutate(ctx, productID, func(c Cart, id string) {
		delete(c, id)
	})
}

// SetQuantity overwrites the quantity. q <= 0 removes the product.
func (r *Repository) SetQuantity(ctx context.Context, productID string, q int) (Cart, error) {
	return r.mutate(ctx, productID, func(c Cart, id string) {
		if q <= 0 {
			delete(c, id)
			return
		}
		c[id] = q
	})
}

// Clear deletes the cart key.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	err := r.store.Delete(ctx, keys.Cart)
	r.mu.Unlock()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	r.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.Cart})
	return nil
}

func (r *Repository) mutate(ctx context.Context, productID string, apply func(Cart, string)) (Cart, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	r.mu.Lock()
	current, err := r.load(ctx)
	if err != nil {
		r.mu.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
	}
	next := current.clone()
	apply(next, id)
	if err := kvs.SetJSON(ctx, r.store, keys.Cart, next); err != nil {
		r.mu.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write cart")
	}
	r.mu.Unlock()

	r.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.Cart})
	return next.clone(), nil
}

func (r *Repository) load(ctx context.Context) (Cart, error) {
	c, found, err := kvs.GetJSON[Cart](ctx, r.store, keys.Cart, r.logg)
	if err != nil {
		return nil, err
	}
	if !found {
		return Cart{}, nil
	}
	return sanitize(c), nil
}
