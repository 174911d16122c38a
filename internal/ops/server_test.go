package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solshop/backend/internal/domain"
	"github.com/solshop/backend/internal/inventory"
	"github.com/solshop/backend/internal/repository"
)

type stubInventory struct {
	records map[int64]*domain.InventoryRecord
	errs    map[int64]error
}

func (s *stubInventory) Get(_ context.Context, itemID int64) (*domain.InventoryRecord, error) {
	if err, ok := s.errs[itemID]; ok {
		return nil, err
	}
	record, ok := s.records[itemID]
	if !ok {
		return nil, inventory.ErrRecordNotFound
	}
	return record, nil
}

type stubChain struct{ connected bool }

func (s *stubChain) Connected() bool { return s.connected }

func setupServer(connected bool) http.Handler {
	inv := &stubInventory{
		records: map[int64]*domain.InventoryRecord{
			42: {ItemID: 42, Total: 10, Reserved: 3},
		},
		errs: map[int64]error{
			// Unknown to cache and durable store alike: the seed wraps the
			// store's sentinel.
			777: fmt.Errorf("seed inventory for item 777: %w", repository.ErrItemNotFound),
		},
	}
	return NewServer(inv, &stubChain{connected: connected}, zap.NewNop()).Router()
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["chain_connected"])
}

func TestHealthzDegradedWithoutChain(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInventoryReadout(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(10), body["total"])
	assert.Equal(t, float64(3), body["reserved"])
	assert.Equal(t, float64(7), body["available"])
}

func TestInventoryReadoutNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryReadoutUnknownItemInStore(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/777", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryReadoutBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	setupServer(true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
