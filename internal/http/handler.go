package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/product"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/session"
)

const (
	storageTimeout        = 3 * time.Second
	defaultGatewayTimeout = 10 * time.Second
)

type Handler struct {
	catalog        *product.Catalog
	sessions       *session.Manager
	logger         *zap.Logger
	probes         []Probe
	gatewayTimeout time.Duration
}

type Deps struct {
	Catalog        *product.Catalog
	Sessions       *session.Manager
	Logger         *zap.Logger
	Probes         []Probe
	GatewayTimeout time.Duration
}

func NewHandler(d Deps) *Handler {
	timeout := d.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog:        d.Catalog,
		sessions:       d.Sessions,
		logger:         logger,
		probes:         d.Probes,
		gatewayTimeout: timeout,
	}
}

// session resolves the caller's session. RequireSessionID guarantees the id.
func (h *Handler) session(ctx context.Context) *session.Session {
	return h.sessions.Get(ctx, middleware.GetSessionID(ctx))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
