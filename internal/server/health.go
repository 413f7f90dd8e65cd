package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	services := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			services[name] = "unhealthy"
			healthy = false
			continue
		}
		services[name] = "healthy"
	}
	return services, healthy
}

// Health reports the state of every registered dependency.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	services, healthy := s.runChecks(r.Context())
	response := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  services,
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

// Ready answers 200 once the output root is usable and every dependency
// answers.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	if _, healthy := s.runChecks(r.Context()); !healthy {
		http.Error(w, "Service not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
