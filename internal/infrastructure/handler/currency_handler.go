package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/infrastructure/cache"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// RateStore is the view of the rate store the currency endpoints need
type RateStore interface {
	BaseCurrency() string
	Snapshot() *cache.Snapshot
	Status() cache.Status
	Refresh(ctx context.Context) bool
}

// CurrencyHandler exposes the rate snapshot and conversions
type CurrencyHandler struct {
	rates          RateStore
	conversion     *service.ConversionService
	refreshTimeout time.Duration
	logger         logger.Logger
}

// DefaultRefreshTimeout bounds an administrative refresh when no timeout is configured
const DefaultRefreshTimeout = 10 * time.Second

// NewCurrencyHandler creates a new currency handler. refreshTimeout bounds POST /currencies/refresh.
func NewCurrencyHandler(rates RateStore, conversion *service.ConversionService, refreshTimeout time.Duration, log logger.Logger) *CurrencyHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}

	return &CurrencyHandler{
		rates:          rates,
		conversion:     conversion,
		refreshTimeout: refreshTimeout,
		logger:         log,
	}
}

// ListCurrencies returns the current snapshot and refresh status
func (h *CurrencyHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	snap := h.rates.Snapshot()

	resp := CurrenciesResponse{
		Base:   h.rates.BaseCurrency(),
		Date:   snap.Date(),
		Rates:  snap.Rates(),
		Status: h.rates.Status(),
	}
	if fetchedAt := snap.FetchedAt(); !fetchedAt.IsZero() {
		resp.FetchedAt = &fetchedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// Convert converts amount between two currencies; an unknown currency answers 404
func (h *CurrencyHandler) Convert(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	from := strings.ToUpper(strings.TrimSpace(query.Get("from")))
	to := strings.ToUpper(strings.TrimSpace(query.Get("to")))
	if from == "" || to == "" {
		sendErrorResponse(w, h.logger, "Missing currency parameter",
			"The 'from' and 'to' query parameters are required", http.StatusBadRequest, requestID)
		return
	}

	amount, err := strconv.ParseFloat(query.Get("amount"), 64)
	if err == nil && (math.IsNaN(amount) || math.IsInf(amount, 0)) {
		err = errors.New("not a finite number")
	}
	if err != nil {
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid amount",
			fmt.Errorf("the 'amount' query parameter must be a number: %w", err))
		return
	}

	result, err := h.conversion.Convert(amount, from, to)
	if errors.Is(err, apperrors.ErrRateNotFound) {
		respondStatus(w, h.logger, requestID, http.StatusNotFound, "Exchange rate not found", err)
		return
	}
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		respondError(w, h.logger, requestID, service.ErrNonFiniteAmount)
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{
		Amount: amount,
		From:   from,
		To:     to,
		Result: result,
	})
}

// Refresh triggers an immediate refresh of the rate store
func (h *CurrencyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), h.refreshTimeout)
	defer cancel()

	if !h.rates.Refresh(ctx) {
		status := h.rates.Status()
		h.logger.Warn("Administrative refresh failed", map[string]interface{}{
			"request_id": requestID,
			"error":      status.LastError,
		})
		sendErrorResponse(w, h.logger, "Exchange rate service unavailable",
			status.LastError, http.StatusServiceUnavailable, requestID)
		return
	}

	h.logger.Info("Administrative refresh succeeded", map[string]interface{}{
		"request_id": requestID,
	})
	writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: true, Rates: h.rates.Snapshot().Len()})
}

// RegisterRoutes registers the currency handler routes
func (h *CurrencyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/currencies", h.ListCurrencies).Methods("GET")
	router.HandleFunc("/currencies/convert", h.Convert).Methods("GET")
	router.HandleFunc("/currencies/refresh", h.Refresh).Methods("POST")

	h.logger.Info("Currency routes registered", map[string]interface{}{
		"routes": []string{
			"GET /currencies",
			"GET /currencies/convert",
			"POST /currencies/refresh",
		},
	})
}
