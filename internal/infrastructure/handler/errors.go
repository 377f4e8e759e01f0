package handler

import (
	"errors"
	"net/http"

	"github.com/damon-houk/catalog-service/internal/application/service"
	"github.com/damon-houk/catalog-service/internal/domain/apperrors"
	"github.com/damon-houk/catalog-service/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
)

// errorStatus maps a service error to an HTTP status and a short message
func errorStatus(err error) (int, string) {
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, apperrors.ErrUnknownCurrency):
		return http.StatusBadRequest, "Unknown currency"
	case errors.Is(err, service.ErrNonFiniteAmount):
		return http.StatusBadRequest, "Amount out of range"
	case errors.Is(err, apperrors.ErrRateNotFound):
		return http.StatusBadRequest, "Exchange rate not found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, apperrors.ErrDuplicate):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, apperrors.ErrVersionConflict):
		return http.StatusConflict, "Concurrent modification"
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "Exchange rate service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError logs err and writes the matching error response
func respondError(w http.ResponseWriter, log logger.Logger, requestID string, err error) {
	status, message := errorStatus(err)
	respondStatus(w, log, requestID, status, message, err)
}

// respondStatus writes an error response with an explicit status.
// Server errors get a generic description; the cause only goes to the log.
func respondStatus(w http.ResponseWriter, log logger.Logger, requestID string, status int, message string, err error) {
	fields := map[string]interface{}{
		"request_id":  requestID,
		"status_code": status,
		"error":       err.Error(),
	}

	description := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error(message, fields)
		if status == http.StatusInternalServerError {
			description = "An unexpected error occurred. Please try again later."
		}
	} else {
		log.Warn(message, fields)
	}

	sendErrorResponse(w, log, message, description, status, requestID)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	writeJSON(w, statusCode, ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	})
}
