package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// WishlistService is the wishlist repository as the handlers use it.
type WishlistService interface {
	Get(ctx context.Context) []string
	Toggle(ctx context.Context, productID string) (bool, error)
	Clear(ctx context.Context) error
	RequestPanel(ctx context.Context)
}

type wishlistResponse struct {
	ProductIDs []string `json:"productIds"`
}

type toggleResponse struct {
	ProductID  string   `json:"productId"`
	Wishlisted bool     `json:"wishlisted"`
	ProductIDs []string `json:"productIds"`
}

func WishlistFetch(svc WishlistService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wishlist service")
			return
		}
		responses.WriteSuccess(w, wishlistResponse{ProductIDs: nonNil(svc.Get(r.Context()))})
	}
}

// WishlistToggle adds the product when absent and removes it otherwise.
func WishlistToggle(svc WishlistService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wishlist service")
			return
		}
		productID, err := validators.PathID("product id", chi.URLParam(r, "productID"))
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		added, err := svc.Toggle(r.Context(), productID)
		if err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, toggleResponse{
			ProductID:  productID,
			Wishlisted: added,
			ProductIDs: nonNil(svc.Get(r.Context())),
		})
	}
}

func WishlistClear(svc WishlistService, n ErrorNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wishlist service")
			return
		}
		if err := svc.Clear(r.Context()); err != nil {
			fail(w, r, n, logg, err)
			return
		}
		responses.WriteSuccess(w, wishlistResponse{ProductIDs: []string{}})
	}
}

// WishlistOpenPanel asks mounted surfaces to open the wishlist.
func WishlistOpenPanel(svc WishlistService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "wishlist service")
			return
		}
		svc.RequestPanel(r.Context())
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "requested"})
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
