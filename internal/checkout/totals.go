package checkout

import (
	"github.com/angelmondragon/petshop-storefront/internal/cart"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

var instantTransferRate = decimal.RequireFromString("0.05")

// PriceLookup resolves a product's unit price.
type PriceLookup interface {
	PriceOf(productID string) (decimal.Decimal, bool)
}

// Totals is the result of pricing a cart for one payment method.
type Totals struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	CreditsApplicable int64           `json:"creditsApplicable"`
	CreditsApplied    int64           `json:"creditsApplied"`
	Total             decimal.Decimal `json:"total"`

	// CreditCost is what a confirmed checkout deducts from the balance.
	CreditCost int64 `json:"creditCost"`
	// Sufficient is false only for a LuckCoins checkout the balance cannot cover.
	Sufficient bool `json:"sufficient"`
}

// ComputeTotals prices items for method. balance is the available LuckCoins
// and requested is how many of them the customer wants to apply; it is
// clamped to what the discounted subtotal allows. Unknown products price at
// zero. The result depends only on the arguments.
func ComputeTotals(items cart.Cart, prices PriceLookup, method enums.PaymentMethod, balance, requested int64) Totals {
	if balance < 0 {
		balance = 0
	}

	subtotal := decimal.Zero
	for _, id := range items.ProductIDs() {
		qty := items[id]
		if qty <= 0 || prices == nil {
			continue
		}
		price, ok := prices.PriceOf(id)
		if !ok {
			continue
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	subtotal = subtotal.Round(2)

	discount := decimal.Zero
	if method == enums.PaymentMethodInstantTransfer {
		discount = subtotal.Mul(instantTransferRate).Round(2)
	}
	net := subtotal.Sub(discount)
	wholeNet := wholeCredits(net)

	totals := Totals{
		Subtotal:          subtotal,
		Discount:          discount,
		CreditsApplicable: min(balance, wholeNet),
	}

	if method.UsesCredits() {
		totals.CreditCost = wholeNet
		totals.Sufficient = balance >= wholeNet
		if !totals.Sufficient {
			totals.Total = net
			return totals
		}
		totals.CreditsApplied = wholeNet
		totals.Total = decimal.Zero
		return totals
	}

	applied := requested
	if applied < 0 {
		applied = 0
	}
	applied = min(applied, totals.CreditsApplicable)
	totals.CreditsApplied = applied
	totals.CreditCost = applied
	totals.Sufficient = true
	totals.Total = decimal.Max(decimal.Zero, net.Sub(decimal.NewFromInt(applied)))
	return totals
}

func wholeCredits(amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}
	return amount.Floor().IntPart()
}
