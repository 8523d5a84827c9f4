package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/internal/cart"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// CartService is the cart repository as the handlers use it.
type CartService interface {
	Get(ctx context.Context) cart.Cart
	AddItem(ctx context.Context, productID string) (cart.Cart, error)
	RemoveItem(ctx context.Context, productID string) (cart.Cart, error)
	SetQuantity(ctx context.Context, productID string, q int) (cart.Cart, error)
	Clear(ctx context.Context) error
}

type cartResponse struct {
	Items      cart.Cart `json:"items"`
	TotalItems int       `json:"totalItems"`
}

func newCartResponse(c cart.Cart) cartResponse {
	if c == nil {
		c = cart.Cart{}
	}
	return cartResponse{Items: c, TotalItems: c.TotalItems()}
}

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

func CartFetch(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart service")
			return
		}
		responses.WriteSuccess(w, newCartResponse(svc.Get(r.Context())))
	}
}

// CartAddItem increments a product by one.
func CartAddItem(svc CartService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart service")
			return
		}
		var req addCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		c, err := svc.AddItem(r.Context(), req.ProductID)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartSetQuantity overwrites a product's quantity; zero removes it.
func CartSetQuantity(svc CartService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart service")
			return
		}
		productID, err := validators.PathID("product id", chi.URLParam(r, "productID"))
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		var req setQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		c, err := svc.SetQuantity(r.Context(), productID, req.Quantity)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartRemoveItem(svc CartService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart service")
			return
		}
		productID, err := validators.PathID("product id", chi.URLParam(r, "productID"))
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		c, err := svc.RemoveItem(r.Context(), productID)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartClear(svc CartService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "cart service")
			return
		}
		if err := svc.Clear(r.Context()); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(nil))
	}
}
