package users

import (
	"context"
	"fmt"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// Repository persists the current principal in the KVS.
type Repository struct {
	store kvs.Store
	logg  *logger.Logger
}

// NewRepository constructs a principal repository bound to the provided store.
func NewRepository(store kvs.Store, logg *logger.Logger) *Repository {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{store: store, logg: logg}
}

// Get loads the persisted principal. A missing or undecodable record reports found=false.
func (r *Repository) Get(ctx context.Context) (Principal, bool, error) {
	p, found, err := kvs.GetJSON[Principal](ctx, r.store, keys.User, r.logg)
	if err != nil {
		return Principal{}, false, fmt.Errorf("load principal: %w", err)
	}
	if found && p.ID == "" {
		r.logg.Warn(r.logg.WithKey(ctx, keys.User), "discarding principal without id")
		return Principal{}, false, nil
	}
	return p, found, nil
}

// Save overwrites the persisted principal.
func (r *Repository) Save(ctx context.Context, p Principal) error {
	if p.ID == "" {
		return fmt.Errorf("principal id required")
	}
	if err := kvs.SetJSON(ctx, r.store, keys.User, p); err != nil {
		return fmt.Errorf("save principal: %w", err)
	}
	return nil
}
