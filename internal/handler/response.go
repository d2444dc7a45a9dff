package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/medhq/hospital-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error maps the typed error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is an infrastructure failure and surfaces as a generic 500.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status, message = http.StatusNotFound, err.Error()
	case apperrors.ErrConflict:
		status, message = http.StatusConflict, err.Error()
	case apperrors.ErrForbidden:
		status, message = http.StatusForbidden, err.Error()
	case apperrors.ErrInvalidTransition, apperrors.ErrAmountTooLow, apperrors.ErrAlreadyPaid:
		status, message = http.StatusUnprocessableEntity, err.Error()
	case apperrors.ErrValidation, apperrors.ErrBadRequest:
		status, message = http.StatusBadRequest, err.Error()
	case apperrors.ErrUnauthorized:
		status, message = http.StatusUnauthorized, err.Error()
	}

	c.JSON(status, NewErrorResponse(message))
}
