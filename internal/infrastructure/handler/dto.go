package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/catalog-service/internal/domain/entity"
	"github.com/damon-houk/catalog-service/internal/infrastructure/cache"
	"github.com/go-playground/validator/v10"
)

// CreateProductRequest represents the request body for creating a product
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Value       float64 `json:"value" validate:"gt=0"`
	CurrencyISO string  `json:"currencyIso" validate:"omitempty,len=3,alpha"`
	Category    string  `json:"category"`
}

// UpdateProductRequest represents the request body for updating a product; absent fields are left unchanged
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Value       *float64 `json:"value" validate:"omitempty,gt=0"`
	CurrencyISO *string  `json:"currencyIso" validate:"omitempty,len=3,alpha"`
}

// CreateCategoryRequest is the optional body of a category creation
type CreateCategoryRequest struct {
	Products []string `json:"products" validate:"omitempty,dive,required"`
}

// CategoryProductsRequest lists the product ids to add to or remove from a category
type CategoryProductsRequest struct {
	Products []string `json:"products" validate:"required,dive,required"`
}

// RenameCategoryRequest carries the new last segment of a category path
type RenameCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	CurrencyISO string  `json:"currencyIso"`
}

func newProductResponse(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Value:       p.Value,
		CurrencyISO: p.CurrencyISO,
	}
}

func newProductResponses(products []*entity.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CategoryPath string   `json:"categoryPath"`
	Products     []string `json:"products"`
}

func newCategoryResponse(c *entity.Category) CategoryResponse {
	products := c.Products
	if products == nil {
		products = []string{}
	}
	return CategoryResponse{
		ID:           c.ID,
		Name:         c.Name,
		CategoryPath: c.CategoryPath,
		Products:     products,
	}
}

func newCategoryResponses(categories []*entity.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, newCategoryResponse(c))
	}
	return out
}

// CurrenciesResponse describes the current rate snapshot
type CurrenciesResponse struct {
	Base      string             `json:"base"`
	Date      string             `json:"date,omitempty"`
	FetchedAt *time.Time         `json:"fetchedAt,omitempty"`
	Rates     map[string]float64 `json:"rates"`
	Status    cache.Status       `json:"status"`
}

// ConvertResponse is the result of a single conversion
type ConvertResponse struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Result float64 `json:"result"`
}

// RefreshResponse reports a successful administrative refresh
type RefreshResponse struct {
	Refreshed bool `json:"refreshed"`
	Rates     int  `json:"rates"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

var validate = validator.New()

// errEmptyBody is returned by decodeAndValidate when the request has no body
var errEmptyBody = errors.New("request body is empty")

// decodeAndValidate parses the JSON body into a T and validates it
func decodeAndValidate[T any](r *http.Request) (*T, error) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyBody
		}
		return nil, fmt.Errorf("the request body could not be parsed as valid JSON: %w", err)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	return &input, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
