package users

import (
	"context"
	"testing"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
)

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(kvs.NewMemoryStore(), nil)

	if _, found, err := repo.Get(ctx); err != nil || found {
		t.Fatalf("expected empty repository, found=%v err=%v", found, err)
	}

	p := Principal{ID: "u1", Name: "Ana", Role: enums.RoleUser, Credits: 12}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, found, err := repo.Get(ctx)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got != p {
		t.Fatalf("got %+v, want %+v", got, p)
	}
}

func TestRepositoryTreatsCorruptRecordAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := kvs.NewMemoryStore()
	repo := NewRepository(store, nil)

	for _, raw := range []string{"{oops", `{"name":"no id"}`} {
		_ = store.Set(ctx, keys.User, raw)
		if _, found, err := repo.Get(ctx); err != nil || found {
			t.Fatalf("expected %q to be treated as absent, found=%v err=%v", raw, found, err)
		}
	}
}

func TestRepositorySaveRequiresID(t *testing.T) {
	if err := NewRepository(kvs.NewMemoryStore(), nil).Save(context.Background(), Principal{}); err == nil {
		t.Fatalf("expected error for principal without id")
	}
}
