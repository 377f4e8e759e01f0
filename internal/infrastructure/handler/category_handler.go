package handler

import (
	"errors"
	"net/http"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/damon-houk/catalog-service/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// CategoryHandler handles HTTP requests for the category hierarchy
type CategoryHandler struct {
	service *service.CategoryService
	logger  logger.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(service *service.CategoryService, log logger.Logger) *CategoryHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CategoryHandler{
		service: service,
		logger:  log,
	}
}

// CreateCategory creates the category named by the path; an existing path answers 208
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	path := mux.Vars(r)["categories"]

	var products []string
	req, err := decodeAndValidate[CreateCategoryRequest](r)
	switch {
	case errors.Is(err, errEmptyBody):
	case err != nil:
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid request body", err)
		return
	default:
		products = req.Products
	}

	category, err := h.service.CreateCategory(r.Context(), path, products)
	if errors.Is(err, apperrors.ErrDuplicate) && category != nil {
		h.logger.Info("Category already exists", map[string]interface{}{
			"request_id": requestID,
			"path":       path,
		})
		writeJSON(w, http.StatusAlreadyReported, newCategoryResponse(category))
		return
	}
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCategoryResponse(category))
}

// ListCategories returns every category
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newCategoryResponses(categories))
}

// GetCategoryTree returns the category and its descendants
func (h *CategoryHandler) GetCategoryTree(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tree, err := h.service.GetCategoryTree(r.Context(), mux.Vars(r)["categories"])
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newCategoryResponses(tree))
}

// GetCategoryProducts returns the category's products, optionally in another currency
func (h *CategoryHandler) GetCategoryProducts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	products, err := h.service.GetCategoryProducts(r.Context(),
		mux.Vars(r)["categories"], r.URL.Query().Get("currencyIso"))
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newProductResponses(products))
}

// RenameCategory changes the last segment of the category path
func (h *CategoryHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	req, err := decodeAndValidate[RenameCategoryRequest](r)
	if err != nil {
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, err := h.service.RenameCategory(r.Context(), mux.Vars(r)["categories"], req.Name)
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newCategoryResponse(category))
}

// UpdateCategoryProducts adds or removes products, depending on the action path segment
func (h *CategoryHandler) UpdateCategoryProducts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	vars := mux.Vars(r)

	req, err := decodeAndValidate[CategoryProductsRequest](r)
	if err != nil {
		respondStatus(w, h.logger, requestID, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	category, err := h.service.UpdateCategoryProducts(r.Context(), vars["categories"],
		service.ProductAction(vars["action"]), req.Products)
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newCategoryResponse(category))
}

// DeleteCategory removes the category and its descendants, returning the deleted category
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	category, err := h.service.DeleteCategory(r.Context(), mux.Vars(r)["categories"])
	if err != nil {
		respondError(w, h.logger, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, newCategoryResponse(category))
}

// RegisterRoutes registers the category handler routes
func (h *CategoryHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/categories", h.ListCategories).Methods("GET")
	router.HandleFunc("/categories/{categories}/products", h.GetCategoryProducts).Methods("GET")
	router.HandleFunc("/categories/{categories}/products/{action}", h.UpdateCategoryProducts).Methods("POST")
	router.HandleFunc("/categories/{categories}", h.CreateCategory).Methods("PUT")
	router.HandleFunc("/categories/{categories}", h.GetCategoryTree).Methods("GET")
	router.HandleFunc("/categories/{categories}", h.RenameCategory).Methods("POST")
	router.HandleFunc("/categories/{categories}", h.DeleteCategory).Methods("DELETE")

	h.logger.Info("Category routes registered", map[string]interface{}{
		"routes": []string{
			"GET /categories",
			"GET /categories/{categories}/products",
			"POST /categories/{categories}/products/{action}",
			"PUT /categories/{categories}",
			"GET /categories/{categories}",
			"POST /categories/{categories}",
			"DELETE /categories/{categories}",
		},
	})
}
