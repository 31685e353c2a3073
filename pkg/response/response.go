package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumu-waks/service-booking/pkg/domain"
)

// Envelope is the JSON shape every endpoint responds with.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// SuccessMessage writes a 200 response with a human-readable message.
func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message, Error: "validation_error"})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, items interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Error maps a domain error to its HTTP status and writes the envelope.
func Error(c *gin.Context, err error) {
	var (
		notFound   *domain.NotFoundError
		forbidden  *domain.ForbiddenError
		invalid    *domain.InvalidStateError
		validation *domain.ValidationError
		mismatch   *domain.AmountMismatchError
		expired    *domain.ExpiredError
		conflict   *domain.ConflictError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, Envelope{Success: false, Message: err.Error(), Error: "not_found"})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, Envelope{Success: false, Message: err.Error(), Error: "forbidden"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":        false,
			"message":        err.Error(),
			"error":          "invalid_state",
			"current_status": invalid.Current,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: err.Error(), Error: "validation_error"})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"message":  err.Error(),
			"error":    "amount_mismatch",
			"expected": mismatch.Expected,
			"actual":   mismatch.Actual,
		})
	case errors.As(err, &expired):
		c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: err.Error(), Error: "expired"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, Envelope{Success: false, Message: err.Error(), Error: "conflict"})
	default:
		c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: "internal server error", Error: "internal"})
	}
}
