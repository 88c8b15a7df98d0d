package server

import (
	"encoding/json"
	"net/http"

	"github.com/mpraski/quota/app/store"
	log "github.com/sirupsen/logrus"
)

type (
	State struct {
		Backend  string `json:"backend"`
		Degraded bool   `json:"degraded"`
	}

	StateFunc func() State
)

// NewInternal serves the quota administration endpoints. They are not
// authenticated, so the endpoint must only be reachable from a private
// network.
func NewInternal(config Config, d store.Deleter, state StateFunc) *Endpoint {
	return newEndpoint(config, internalRouter(d, state))
}

func internalRouter(d store.Deleter, state StateFunc) http.Handler {
	router := http.NewServeMux()
	router.Handle("/internal/quota", resetQuota(d))
	router.Handle("/internal/quota/state", quotaState(state))

	return router
}

// resetQuota clears the counter of a key, e.g. after a verified OTP.
func resetQuota(d store.Deleter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", http.MethodDelete)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)

			return
		}

		key := r.URL.Query().Get("key")
		if key == "" {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := d.Del(r.Context(), key); err != nil {
			log.WithError(err).WithField("key", key).Error("failed to reset quota")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func quotaState(state StateFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)

			return
		}

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(state()); err != nil {
			log.WithError(err).Error("failed to encode quota state")
		}
	})
}
