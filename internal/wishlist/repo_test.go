package wishlist

import (
	"context"
	"reflect"
	"testing"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
)

type recordingPublisher struct {
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e broadcast.Event) {
	p.events = append(p.events, e)
}

func newTestRepo(t *testing.T) (*Repository, *kvs.MemoryStore, *recordingPublisher) {
	t.Helper()
	store := kvs.NewMemoryStore()
	pub := &recordingPublisher{}
	repo, err := NewRepository(store, pub, nil)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return repo, store, pub
}

func TestToggleKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _, _ := newTestRepo(t)

	for _, id := range []string{"c", "a", "b"} {
		member, err := repo.Toggle(ctx, id)
		if err != nil || !member {
			t.Fatalf("toggle %s: member=%v err=%v", id, member, err)
		}
	}
	if got := repo.Get(ctx); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected order %v", got)
	}

	member, err := repo.Toggle(ctx, "a")
	if err != nil || member {
		t.Fatalf("second toggle should remove: member=%v err=%v", member, err)
	}
	if repo.Contains(ctx, "a") {
		t.Fatalf("expected a removed")
	}
	if got := repo.Get(ctx); !reflect.DeepEqual(got, []string{"c", "b"}) {
		t.Fatalf("unexpected order after removal %v", got)
	}
}

func TestWishlistCorruptValueIsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store, _ := newTestRepo(t)

	_ = store.Set(ctx, keys.Wishlist, `{"not":"a list"}`)
	if got := repo.Get(ctx); len(got) != 0 {
		t.Fatalf("expected empty wishlist, got %v", got)
	}

	_ = store.Set(ctx, keys.Wishlist, `["a","a","","b"]`)
	if got := repo.Get(ctx); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("expected duplicates dropped, got %v", got)
	}
}

func TestWishlistPublishes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _, pub := newTestRepo(t)

	repo.Toggle(ctx, "a")
	repo.Clear(ctx)
	repo.RequestPanel(ctx)

	want := []broadcast.Event{
		broadcast.StorageChanged{Key: keys.Wishlist},
		broadcast.StorageChanged{Key: keys.Wishlist},
		broadcast.OpenWishlistPanel{},
	}
	if !reflect.DeepEqual(pub.events, want) {
		t.Fatalf("unexpected events %#v", pub.events)
	}
	if len(repo.Get(ctx)) != 0 {
		t.Fatalf("expected cleared wishlist")
	}
}

func TestToggleRequiresProductID(t *testing.T) {
	t.Parallel()
	repo, _, _ := newTestRepo(t)
	_, err := repo.Toggle(context.Background(), "")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
