package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/xferlink/internal/queues"
	"github.com/rs/zerolog"
)

// QueuesHandler exposes the active queue-extension mapping for operators
type QueuesHandler struct {
	resolver *queues.Resolver
	logger   zerolog.Logger
}

// NewQueuesHandler creates a new QueuesHandler
func NewQueuesHandler(resolver *queues.Resolver, logger zerolog.Logger) *QueuesHandler {
	return &QueuesHandler{
		resolver: resolver,
		logger:   logger.With().Str("component", "queues_handler").Logger(),
	}
}

// GetMapping returns the queue extension to callee extension mapping
// GET /internal/queues
func (h *QueuesHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.resolver.Mapping())
}
