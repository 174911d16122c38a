package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/inventory"
	"github.com/solshop/backend/internal/repository"
)

// InventoryReader is the read-only slice of the reservation service the ops
// surface exposes.
type InventoryReader interface {
	Get(ctx context.Context, itemID int64) (*domain.InventoryRecord, error)
}

// ChainStatus reports whether the ledger push subscription is live.
type ChainStatus interface {
	Connected() bool
}

// Server is the operational HTTP surface: health and inventory readouts.
type Server struct {
	inventory InventoryReader
	chain     ChainStatus
	logger    *zap.Logger
}

func NewServer(inv InventoryReader, chain ChainStatus, logger *zap.Logger) *Server {
	return &Server{inventory: inv, chain: chain, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/inventory/{itemID}", s.handleInventory)
	return otelhttp.NewHandler(r, "ops")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !s.chain.Connected() {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"status":          http.StatusText(status),
		"chain_connected": s.chain.Connected(),
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item id"})
		return
	}

	record, err := s.inventory.Get(r.Context(), itemID)
	if err != nil {
		// A cache miss falls through to the durable store, so an unknown
		// item surfaces as either sentinel depending on where the lookup
		// gave up.
		if errors.Is(err, inventory.ErrRecordNotFound) || errors.Is(err, repository.ErrItemNotFound) {
			s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		s.logger.Error("inventory readout failed", zap.Int64("item_id", itemID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"item_id":   record.ItemID,
		"total":     record.Total,
		"reserved":  record.Reserved,
		"available": record.Available(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}
