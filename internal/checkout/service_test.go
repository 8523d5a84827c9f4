package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/petshop-storefront/internal/cart"
	"github.com/angelmondragon/petshop-storefront/internal/credits"
	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Success(_ context.Context, msg string) {
	n.messages = append(n.messages, msg)
}

type fixture struct {
	svc      *Service
	store    *kvs.MemoryStore
	cart     *cart.Repository
	ledger   *credits.Ledger
	notifier *recordingNotifier
	user     users.Principal
}

func newFixture(t *testing.T, balance int64, prices priceTable) *fixture {
	t.Helper()
	ctx := context.Background()
	store := kvs.NewMemoryStore()
	pub := &recordingPublisher{}
	principals := users.NewRepository(store, nil)
	user := users.Principal{ID: "user-1", Role: enums.RoleUser, Credits: balance}
	if err := principals.Save(ctx, user); err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	cartRepo, err := cart.NewRepository(store, pub, nil)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	ledger, err := credits.NewLedger(credits.LedgerParams{Store: store, Principals: principals, Publisher: pub})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	n := &recordingNotifier{}
	svc, err := NewService(ServiceParams{
		Cart:      cartRepo,
		Prices:    prices,
		Credits:   ledger,
		Store:     store,
		Publisher: pub,
		Notifier:  n,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &fixture{svc: svc, store: store, cart: cartRepo, ledger: ledger, notifier: n, user: user}
}

func (f *fixture) add(t *testing.T, id string, qty int) {
	t.Helper()
	if _, err := f.cart.SetQuantity(context.Background(), id, qty); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestConfirmLuckCoinsInsufficientLeavesBalance(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 40, priceTable{"A": "41.30"})
	f.add(t, "A", 1)

	_, err := f.svc.Confirm(context.Background(), f.user, Request{PaymentMethod: enums.PaymentMethodLuckCoins})
	if !pkgerrors.Is(err, pkgerrors.CodeInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := f.balance(t); got != 40 {
		t.Fatalf("balance changed to %d", got)
	}
	if len(f.cart.Get(context.Background())) != 1 {
		t.Fatalf("cart must survive a failed checkout")
	}
}

func TestConfirmLuckCoinsDeductsWholeCost(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, priceTable{"A": "41.30"})
	f.add(t, "A", 1)

	receipt, err := f.svc.Confirm(context.Background(), f.user, Request{PaymentMethod: enums.PaymentMethodLuckCoins})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if receipt.Totals.CreditCost != 41 || receipt.ID == "" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := f.balance(t); got != 59 {
		t.Fatalf("expected 59, got %d", got)
	}
	if len(f.cart.Get(context.Background())) != 0 {
		t.Fatalf("cart should be cleared")
	}
	if len(f.notifier.messages) != 1 {
		t.Fatalf("expected one success notification, got %v", f.notifier.messages)
	}
}

func TestConfirmAppliesRequestedCredits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 30, priceTable{"A": "50.00"})
	f.add(t, "A", 2)

	receipt, err := f.svc.Confirm(context.Background(), f.user, Request{
		PaymentMethod: enums.PaymentMethodInstantTransfer,
		Credits:       20,
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !receipt.Totals.Total.Equal(dec("75.00")) {
		t.Fatalf("expected 75.00, got %s", receipt.Totals.Total)
	}
	if got := f.balance(t); got != 10 {
		t.Fatalf("expected 10 credits left, got %d", got)
	}
}

func TestStartSnapshotsCartAndQuoteUsesIt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, 0, priceTable{"A": "10.00", "B": "5.00"})
	f.add(t, "A", 1)

	if _, err := f.svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.add(t, "B", 4)

	totals, err := f.svc.Quote(ctx, f.user, enums.PaymentMethodCash, 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !totals.Subtotal.Equal(dec("10.00")) {
		t.Fatalf("quote should price the snapshot, got %s", totals.Subtotal)
	}

	f.svc.Abandon(ctx)
	if _, found, _ := f.store.Get(ctx, keys.CheckoutCart); found {
		t.Fatalf("snapshot should be removed")
	}
	totals, err = f.svc.Quote(ctx, f.user, enums.PaymentMethodCash, 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !totals.Subtotal.Equal(dec("30.00")) {
		t.Fatalf("quote should fall back to the live cart, got %s", totals.Subtotal)
	}
}

func TestStartRejectsEmptyCart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, priceTable{})
	if _, err := f.svc.Start(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGuestsCannotSpendCredits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100, priceTable{"A": "10.00"})
	f.add(t, "A", 1)
	guest := users.Principal{ID: "guest-1", Guest: true}

	_, err := f.svc.Confirm(context.Background(), guest, Request{PaymentMethod: enums.PaymentMethodLuckCoins})
	if !pkgerrors.Is(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.Confirm(context.Background(), guest, Request{PaymentMethod: enums.PaymentMethodCash}); err != nil {
		t.Fatalf("guest cash checkout: %v", err)
	}
	if got := f.balance(t); got != 100 {
		t.Fatalf("guest checkout touched credits: %d", got)
	}
}

func TestConfirmRequiresPrincipalAndItems(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0, priceTable{})

	_, err := f.svc.Confirm(context.Background(), users.Principal{}, Request{PaymentMethod: enums.PaymentMethodCash})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, err = f.svc.Confirm(context.Background(), f.user, Request{PaymentMethod: enums.PaymentMethodCash})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for empty cart, got %v", err)
	}
}
