package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

type balanceReader interface {
	Balance(ctx context.Context) (int64, error)
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

// CreditsBalance returns the acting principal's LuckCoins. Guests and
// anonymous callers read zero.
func CreditsBalance(ledger balanceReader, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			unavailable(w, r, logg, "credit ledger")
			return
		}
		p := actor(r)
		if p.ID == "" || p.Guest {
			responses.WriteSuccess(w, balanceResponse{})
			return
		}
		balance, err := ledger.Balance(r.Context())
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{Balance: balance})
	}
}
