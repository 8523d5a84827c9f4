// Package credits is the LuckCoins ledger. The balance lives in two places,
// the principal record and the "userCredits" key, and every mutation keeps
// them equal.
package credits

import (
	"context"
	"strconv"
	"sync"

	"github.com/angelmondragon/petshop-storefront/internal/keys"
	"github.com/angelmondragon/petshop-storefront/internal/users"
	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/kvs"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
	"github.com/angelmondragon/petshop-storefront/pkg/metrics"
)

const (
	opGrant  = "grant"
	opDeduct = "deduct"
	opAdopt  = "adopt"
)

// PrincipalStore loads and saves the current principal record.
type PrincipalStore interface {
	Get(ctx context.Context) (users.Principal, bool, error)
	Save(ctx context.Context, p users.Principal) error
}

// Mirror receives committed balances for the remote profile. Failures are
// logged and never undo the local commit.
type Mirror interface {
	SaveCredits(ctx context.Context, principalID string, balance int64) error
}

// LedgerParams groups dependencies for the ledger.
type LedgerParams struct {
	Store      kvs.Store
	Principals PrincipalStore
	Publisher  broadcast.Publisher
	Mirror     Mirror
	Metrics    *metrics.Storefront
	Logger     *logger.Logger
}

// Ledger serializes balance read-compute-write sequences behind one mutex.
type Ledger struct {
	mu         sync.Mutex
	store      kvs.Store
	principals PrincipalStore
	pub        broadcast.Publisher
	mirror     Mirror
	metrics    *metrics.Storefront
	logg       *logger.Logger
}

func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kvs store is required")
	}
	if params.Principals == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "principal store is required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "publisher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Ledger{
		store:      params.Store,
		principals: params.Principals,
		pub:        params.Publisher,
		mirror:     params.Mirror,
		metrics:    params.Metrics,
		logg:       logg,
	}, nil
}

// Balance returns the current principal's balance, or zero without one. A
// "userCredits" value that drifted from the principal record is rewritten.
func (l *Ledger) Balance(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, found, err := l.principals.Get(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load principal")
	}
	if !found {
		return 0, nil
	}

	raw, ok, err := l.store.Get(ctx, keys.UserCredits)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read balance")
	}
	if mirrored, parseErr := strconv.ParseInt(raw, 10, 64); !ok || parseErr != nil || mirrored != p.Credits {
		logCtx := l.logg.WithFields(l.logg.WithKey(ctx, keys.UserCredits), map[string]any{
			"stored":    raw,
			"principal": p.Credits,
		})
		l.logg.Warn(logCtx, "repairing drifted balance key")
		if err := l.store.Set(ctx, keys.UserCredits, formatBalance(p.Credits)); err != nil {
			l.logg.Error(logCtx, "repair balance key", err)
		}
	}
	return p.Credits, nil
}

// Grant adds amount to the balance and returns the new balance.
func (l *Ledger) Grant(ctx context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "grant amount must be positive")
	}

	l.mu.Lock()
	p, found, err := l.principals.Get(ctx)
	if err != nil {
		l.mu.Unlock()
		l.metrics.IncLedger(opGrant, metrics.OutcomeFailed)
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load principal")
	}
	if !found {
		l.mu.Unlock()
		l.metrics.IncLedger(opGrant, metrics.OutcomeRejected)
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "no signed-in principal to credit")
	}
	p.Credits += amount
	if err := l.commit(ctx, p); err != nil {
		l.mu.Unlock()
		l.metrics.IncLedger(opGrant, metrics.OutcomeFailed)
		return 0, err
	}
	l.mu.Unlock()

	l.metrics.IncLedger(opGrant, metrics.OutcomeOK)
	l.announce(ctx, p)
	return p.Credits, nil
}

// Deduct removes amount when the balance covers it. An uncovered deduct
// returns false and leaves the balance untouched; it is not an error.
func (l *Ledger) Deduct(ctx context.Context, amount int64) (bool, error) {
	if amount <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "deduct amount must be positive")
	}

	l.mu.Lock()
	p, found, err := l.principals.Get(ctx)
	if err != nil {
		l.mu.Unlock()
		l.metrics.IncLedger(opDeduct, metrics.OutcomeFailed)
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load principal")
	}
	if !found || p.Credits < amount {
		l.mu.Unlock()
		l.metrics.IncLedger(opDeduct, metrics.OutcomeRejected)
		return false, nil
	}
	p.Credits -= amount
	if err := l.commit(ctx, p); err != nil {
		l.mu.Unlock()
		l.metrics.IncLedger(opDeduct, metrics.OutcomeFailed)
		return false, err
	}
	l.mu.Unlock()

	l.metrics.IncLedger(opDeduct, metrics.OutcomeOK)
	l.announce(ctx, p)
	return true, nil
}

// Adopt persists a freshly signed-in principal and its balance as one unit.
func (l *Ledger) Adopt(ctx context.Context, p users.Principal) error {
	if p.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "principal id is required")
	}
	if p.Credits < 0 {
		p.Credits = 0
	}

	l.mu.Lock()
	if err := l.commit(ctx, p); err != nil {
		l.mu.Unlock()
		l.metrics.IncLedger(opAdopt, metrics.OutcomeFailed)
		return err
	}
	l.mu.Unlock()

	l.metrics.IncLedger(opAdopt, metrics.OutcomeOK)
	l.announce(ctx, p)
	return nil
}

// commit writes the balance key and then the principal. A failed principal
// write restores the previous balance key. Callers hold l.mu.
func (l *Ledger) commit(ctx context.Context, p users.Principal) error {
	prevRaw, prevFound, err := l.store.Get(ctx, keys.UserCredits)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read balance")
	}

	if err := l.store.Set(ctx, keys.UserCredits, formatBalance(p.Credits)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write balance")
	}

	if err := l.principals.Save(ctx, p); err != nil {
		var rollbackErr error
		if prevFound {
			rollbackErr = l.store.Set(ctx, keys.UserCredits, prevRaw)
		} else {
			rollbackErr = l.store.Delete(ctx, keys.UserCredits)
		}
		if rollbackErr != nil {
			l.logg.Error(l.logg.WithKey(ctx, keys.UserCredits), "roll back balance key", rollbackErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write principal")
	}
	return nil
}

func (l *Ledger) announce(ctx context.Context, p users.Principal) {
	l.pub.Publish(ctx, broadcast.KeysChanged(keys.User, keys.UserCredits))
	l.pub.Publish(ctx, broadcast.CreditsChanged{Balance: p.Credits})

	if l.mirror == nil {
		return
	}
	if err := l.mirror.SaveCredits(ctx, p.ID, p.Credits); err != nil {
		l.logg.Warn(l.logg.WithFields(l.logg.WithPrincipalID(ctx, p.ID), map[string]any{
			"balance": p.Credits,
			"error":   err.Error(),
		}), "mirror balance to remote profile")
	}
}

func formatBalance(balance int64) string {
	return strconv.FormatInt(balance, 10)
}
