package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/api/validators"
	"github.com/angelmondragon/petshop-storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
	"github.com/angelmondragon/petshop-storefront/pkg/logger"
)

// Catalog is the read side of the embedded catalog.
type Catalog interface {
	Products(category string) []catalog.Product
	Product(id string) (catalog.Product, bool)
	Services() []catalog.Service
	Service(id string) (catalog.Service, bool)
}

func CatalogProducts(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			unavailable(w, r, logg, "catalog")
			return
		}
		category := validators.SanitizeString(strings.ToLower(r.URL.Query().Get("category")), 40)
		responses.WriteSuccess(w, c.Products(category))
	}
}

func CatalogProduct(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			unavailable(w, r, logg, "catalog")
			return
		}
		id, err := validators.PathID("product id", chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p, ok := c.Product(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, p)
	}
}

func CatalogServices(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			unavailable(w, r, logg, "catalog")
			return
		}
		responses.WriteSuccess(w, c.Services())
	}
}

func CatalogService(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			unavailable(w, r, logg, "catalog")
			return
		}
		id, err := validators.PathID("service id", chi.URLParam(r, "serviceID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		s, ok := c.Service(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "service not found"))
			return
		}
		responses.WriteSuccess(w, s)
	}
}
