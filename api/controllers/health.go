package controllers

import (
	"net/http"

	"github.com/angelmondragon/petshop-storefront/api/responses"
	"github.com/angelmondragon/petshop-storefront/pkg/config"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Petshop-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// loadingReporter reports whether the session is still being restored.
type loadingReporter interface {
	Loading() bool
}

// HealthReady reports ready once session restore has finished.
func HealthReady(cfg *config.Config, session loadingReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Petshop-Env", cfg.App.Env)
		if session != nil && session.Loading() {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "restoring"})
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
