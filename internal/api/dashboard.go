package api

import (
	"net/http"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/budget"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/engine"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/store"
	ws "github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/websocket"
)

// DashboardHandler serves the observability endpoints: budget snapshot and
// pipeline metrics.
type DashboardHandler struct {
	store   *store.PostgresStore
	breaker *engine.CircuitBreaker
	hub     *ws.Hub
}

func NewDashboardHandler(s *store.PostgresStore, cb *engine.CircuitBreaker, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{store: s, breaker: cb, hub: hub}
}

// Budget returns the spend ledger with advisory remaining/over-budget
// figures computed against the current calendar period.
func (h *DashboardHandler) Budget(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBudget(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get budget")
		return
	}

	respondJSON(w, http.StatusOK, budget.Snap(*b, timeNow()))
}

type metricsResponse struct {
	Pipeline  *store.PipelineMetrics         `json:"pipeline"`
	Breakers  map[string]engine.BreakerState `json:"breakers"`
	WSClients int                            `json:"ws_clients"`
}

// Metrics returns aggregate dispatch statistics plus the live state of both
// provider circuits.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	pipeline, err := h.store.GetPipelineMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	breakers := map[string]engine.BreakerState{
		string(domain.ChannelPush): h.breaker.State(r.Context(), string(domain.ChannelPush)),
		string(domain.ChannelSMS):  h.breaker.State(r.Context(), string(domain.ChannelSMS)),
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		Pipeline:  pipeline,
		Breakers:  breakers,
		WSClients: h.hub.ClientCount(),
	})
}
