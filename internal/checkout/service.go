// Package checkout prices the cart and settles orders against the LuckCoins
// ledger.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/petshop-storefront/internal/cart"
	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/metrics"
	"github.com/google/uuid"
)

type cartStore interface {
	Get(ctx context.Context) cart.Cart
	Clear(ctx context.Context) error
}

// Credits is the slice of the LuckCoins ledger checkout needs.
type Credits interface {
	Balance(ctx context.Context) (int64, error)
	Deduct(ctx context.Context, amount int64) (bool, error)
}

type notifier interface {
	Success(ctx context.Context, message string)
}

// Snapshot is the cart handed from the cart panel to checkout, stored under
// checkout_cart.
type Snapshot struct {
	Items     cart.Cart `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

// Request is a checkout submission.
type Request struct {
	PaymentMethod enums.PaymentMethod `json:"paymentMethod" validate:"required"`
	Credits       int64               `json:"credits" validate:"gte=0"`
}

// Receipt describes a settled checkout.
type Receipt struct {
	ID            string              `json:"id"`
	PrincipalID   string              `json:"principalId"`
	Items         cart.Cart           `json:"items"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Totals        Totals              `json:"totals"`
	PlacedAt      time.Time           `json:"placedAt"`
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Cart      cartStore
	Prices    PriceLookup
	Credits   Credits
	Store     kvs.Store
	Publisher broadcast.Publisher
	Notifier  notifier
	Metrics   *metrics.Storefront
	Logger    *logger.Logger
}

type Service struct {
	mu       sync.Mutex
	cart     cartStore
	prices   PriceLookup
	credits  Credits
	store    kvs.Store
	pub      broadcast.Publisher
	notifier notifier
	metrics  *metrics.Storefront
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repository is required")
	}
	if params.Prices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price lookup is required")
	}
	if params.Credits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit ledger is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "publisher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		cart:     params.Cart,
		prices:   params.Prices,
		credits:  params.Credits,
		store:    params.Store,
		pub:      params.Publisher,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Start snapshots the live cart for checkout.
func (s *Service) Start(ctx context.Context) (Snapshot, error) {
	items := s.cart.Get(ctx)
	if len(items) == 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	snap := Snapshot{Items: items, CreatedAt: s.now().UTC()}
	if err := kvs.SetJSON(ctx, s.store, keys.CheckoutCart, snap); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout snapshot")
	}
	s.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.CheckoutCart})
	return snap, nil
}

// Quote prices the checkout snapshot, or the live cart when there is none.
func (s *Service) Quote(ctx context.Context, actor users.Principal, method enums.PaymentMethod, requested int64) (Totals, error) {
	if !method.IsValid() {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	balance, err := s.spendable(ctx, actor)
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(s.items(ctx), s.prices, method, balance, requested), nil
}

// Confirm settles the checkout. LuckCoins orders deduct the whole integer
// cost; other methods deduct only the credits applied. The cart and its
// snapshot are cleared once the ledger has been charged.
func (s *Service) Confirm(ctx context.Context, actor users.Principal, req Request) (Receipt, error) {
	method := req.PaymentMethod
	receipt, err := s.confirm(ctx, actor, req)
	switch {
	case err == nil:
		s.metrics.IncCheckout(method.String(), metrics.OutcomeOK)
	case pkgerrors.Is(err, pkgerrors.CodeDependency) || pkgerrors.Is(err, pkgerrors.CodeInternal):
		s.metrics.IncCheckout(method.String(), metrics.OutcomeFailed)
	default:
		s.metrics.IncCheckout(method.String(), metrics.OutcomeRejected)
	}
	return receipt, err
}

func (s *Service) confirm(ctx context.Context, actor users.Principal, req Request) (Receipt, error) {
	if actor.ID == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in or continue as guest to check out")
	}
	if !req.PaymentMethod.IsValid() {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if req.Credits < 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "credits must not be negative")
	}
	if actor.Guest && (req.PaymentMethod.UsesCredits() || req.Credits > 0) {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeForbidden, "guests cannot pay with LuckCoins")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.items(ctx)
	if len(items) == 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	balance, err := s.spendable(ctx, actor)
	if err != nil {
		return Receipt{}, err
	}
	totals := ComputeTotals(items, s.prices, req.PaymentMethod, balance, req.Credits)
	if !totals.Sufficient {
		return Receipt{}, insufficient(totals.CreditCost, balance)
	}

	ctx = s.logg.WithFields(s.logg.WithPrincipalID(ctx, actor.ID), map[string]any{
		"method":      req.PaymentMethod.String(),
		"credit_cost": totals.CreditCost,
	})

	if totals.CreditCost > 0 {
		ok, err := s.credits.Deduct(ctx, totals.CreditCost)
		if err != nil {
			return Receipt{}, err
		}
		if !ok {
			current, _ := s.credits.Balance(ctx)
			return Receipt{}, insufficient(totals.CreditCost, current)
		}
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.logg.Error(ctx, "clear cart after checkout", err)
	}
	s.discardSnapshot(ctx)

	receipt := Receipt{
		ID:            uuid.NewString(),
		PrincipalID:   actor.ID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		Totals:        totals,
		PlacedAt:      s.now().UTC(),
	}
	s.logg.Info(s.logg.WithField(ctx, "receipt_id", receipt.ID), "checkout confirmed")
	if s.notifier != nil {
		s.notifier.Success(ctx, "Order placed")
	}
	return receipt, nil
}

// Abandon drops the checkout snapshot. The live cart is untouched.
func (s *Service) Abandon(ctx context.Context) {
	s.discardSnapshot(ctx)
}

func (s *Service) items(ctx context.Context) cart.Cart {
	snap, found, err := kvs.GetJSON[Snapshot](ctx, s.store, keys.CheckoutCart, s.logg)
	if err != nil {
		s.logg.Error(s.logg.WithKey(ctx, keys.CheckoutCart), "read checkout snapshot", err)
	}
	if found && len(snap.Items) > 0 {
		return positiveOnly(snap.Items)
	}
	return s.cart.Get(ctx)
}

// spendable is the balance the actor may use. Guests and anonymous callers
// have none.
func (s *Service) spendable(ctx context.Context, actor users.Principal) (int64, error) {
	if actor.ID == "" || actor.Guest {
		return 0, nil
	}
	return s.credits.Balance(ctx)
}

func (s *Service) discardSnapshot(ctx context.Context) {
	if err := s.store.Delete(ctx, keys.CheckoutCart); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithKey(ctx, keys.CheckoutCart), "error", err.Error()), "delete checkout snapshot")
		return
	}
	s.pub.Publish(ctx, broadcast.StorageChanged{Key: keys.CheckoutCart})
}

func positiveOnly(items cart.Cart) cart.Cart {
	out := make(cart.Cart, len(items))
	for id, q := range items {
		if id != "" && q > 0 {
			out[id] = q
		}
	}
	return out
}

func insufficient(required, balance int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough LuckCoins").
		WithDetails(map[string]int64{"required": required, "balance": balance})
}
