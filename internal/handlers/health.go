package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
)

// Pinger is satisfied by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
		httputil.WriteJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
