package handler

import (
	"context"
	"net/http"
	"time"
)

type ServiceHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // up, down, unknown
	Details string `json:"details,omitempty"`
}

// Health reports every Docker host and the registry. It answers 200 even
// when degraded so the dashboard stays usable with a host down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var services []ServiceHealth
	up := h.fleet.Ping(ctx)
	for _, s := range h.fleet.Servers() {
		if up[s.Name] {
			services = append(services, ServiceHealth{Name: "docker/" + s.Name, Status: "up"})
		} else {
			services = append(services, ServiceHealth{Name: "docker/" + s.Name, Status: "down", Details: "daemon not reachable"})
		}
	}
	services = append(services, h.checkRegistry(ctx))

	status := "healthy"
	for _, s := range services {
		if s.Status == "down" {
			status = "degraded"
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":   status,
		"services": services,
	})
}

func (h *Handler) checkRegistry(ctx context.Context) ServiceHealth {
	if h.registry == nil || h.cfg.Registry.URL == "" {
		return ServiceHealth{Name: "registry", Status: "unknown", Details: "not configured"}
	}
	if err := h.registry.Ping(ctx); err != nil {
		return ServiceHealth{Name: "registry", Status: "down", Details: err.Error()}
	}
	return ServiceHealth{Name: "registry", Status: "up"}
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": h.version})
}
