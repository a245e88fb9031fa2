package connectrpc

import (
	"encoding/json"
	"net/http"

	"github.com/eslsoft/intentd/internal/usecase"
)

// CacheStatsSource reports the definition cache sizes.
type CacheStatsSource interface {
	Snapshot() usecase.CacheStats
}

type healthResponse struct {
	Status string             `json:"status"`
	Cache  usecase.CacheStats `json:"cache"`
}

// NewHealthHandler serves GET /healthz.
func NewHealthHandler(stats CacheStatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Cache: stats.Snapshot()})
	})
}
