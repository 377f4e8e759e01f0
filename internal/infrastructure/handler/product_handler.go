package handler

import (
	"net/http"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	service *service.ProductService
	logger  logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service *service.ProductService, log logger.Logger) *ProductHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ProductHandler{
		service: service,
		logger:  log,
	}
}

// CreateProduct handles the creation of a new product
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	req, err := decodeAndValidate[CreateProductRequest](r)
	if err != nil {
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		Value:       req.Value,
		CurrencyISO: req.CurrencyISO,
		CategoryID:  req.Category,
	})
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusCreated, newProductResponse(product))
}

// GetProducts returns one product by id, the products with a name, or all products
func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()
	currency := query.Get("currencyIso")

	h.logger.Debug("Handling get products request", map[string]interface{}{
		"request_id": requestID,
		"query":      r.URL.RawQuery,
	})

	switch {
	case query.Has("id"):
		product, err := h.service.GetProduct(r.Context(), query.Get("id"), currency)
		if err != nil {
			respondError(w, h.logger, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, newProductResponse(product))

	case query.Has("name"):
		products, err := h.service.FindProductsByName(r.Context(), query.Get("name"), currency)
		if err != nil {
			respondError(w, h.logger, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, newProductResponses(products))

	default:
		products, err := h.service.ListProducts(r.Context(), currency)
		if err != nil {
			respondError(w, h.logger, requestID, err)
			return
		}
		writeJSON(w, http.StatusOK, newProductResponses(products))
	}
}

// UpdateProduct applies a partial update to the product named by the id query parameter
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		sendErrorResponse(w, h.logger, "Missing id parameter",
			"The 'id' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	req, err := decodeAndValidate[UpdateProductRequest](r)
	if err != nil {
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, service.ProductUpdate{
		Name:        req.Name,
		Value:       req.Value,
		CurrencyISO: req.CurrencyISO,
	})
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	h.logger.Info("Product updated", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
		"version":    product.Version,
	})

	writeJSON(w, http.StatusOK, newProductResponse(product))
}

// DeleteProduct removes the product named by the id query parameter
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		sendErrorResponse(w, h.logger, "Missing id parameter",
			"The 'id' query parameter is required", http.StatusBadRequest, requestID)
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	h.logger.Info("Product deleted", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
	})

	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the product handler routes
func (h *ProductHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/products", h.CreateProduct).Methods("PUT")
	router.HandleFunc("/products", h.GetProducts).Methods("GET")
	router.HandleFunc("/products", h.UpdateProduct).Methods("POST")
	router.HandleFunc("/products", h.DeleteProduct).Methods("DELETE")

	h.logger.Info("Product routes registered", map[string]interface{}{
		"routes": []string{
			"PUT /products",
			"GET /products",
			"POST /products",
			"DELETE /products",
		},
	})
}
