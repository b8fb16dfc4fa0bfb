package handlers

import (
	"errors"
	"log"
	"net/http"

	"tomobs/internal/facility"
	"tomobs/internal/forms"
	"tomobs/internal/middleware"
	"tomobs/internal/service"
	"tomobs/internal/storage"
	"tomobs/internal/thumbnail"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error          string            `json:"error"`
	Message        string            `json:"message,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	ObservationIDs []string          `json:"observation_ids,omitempty"`
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var ve *forms.ValidationError
	var perr *service.PersistenceError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Message: err.Error(),
			Fields:  ve.Fields,
		})
	case errors.Is(err, service.ErrTargetRequired), errors.Is(err, service.ErrInvalidTargetID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid target", Message: err.Error()})
	case errors.Is(err, service.ErrTargetNotFound),
		errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, facility.ErrNotFound),
		errors.Is(err, storage.ErrNotExist):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Message: err.Error()})
	case errors.Is(err, thumbnail.ErrNotFITS):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unsupported file", Message: err.Error()})
	case errors.As(err, &perr):
		log.Printf("[%s] %v", middleware.RequestID(c), err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:          "observations were submitted but could not be recorded",
			Message:        perr.Err.Error(),
			ObservationIDs: perr.ObservationIDs,
		})
	case errors.Is(err, service.ErrSubmission):
		log.Printf("[%s] %v", middleware.RequestID(c), err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "facility submission failed", Message: err.Error()})
	default:
		log.Printf("[%s] %s %s: %v", middleware.RequestID(c), c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Message: err.Error()})
	}
}
