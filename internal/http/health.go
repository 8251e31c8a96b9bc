package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const serviceName = "storefront-service"

// Probe checks one backing dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

// Ready runs every probe concurrently and reports 503 if any fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make([]probeResult, len(h.probes))

	var wg sync.WaitGroup
	wg.Add(len(h.probes))
	for i := range h.probes {
		go func(i int) {
			defer wg.Done()
			res := probeResult{Name: h.probes[i].Name, Status: "ok"}
			if err := h.probes[i].Check(ctx); err != nil {
				res.Status = "down"
				res.Error = err.Error()
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	status, code := "ok", http.StatusOK
	for _, res := range results {
		if res.Status != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"service":      serviceName,
		"dependencies": results,
	})
}
