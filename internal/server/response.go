package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JustIkra/rksi-hackotone/internal/common"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, err error) {
	code := "INTERNAL"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	c.JSON(statusFromError(err), ErrorEnvelope{
		Error: APIError{Message: err.Error(), Code: code},
	})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusFromError maps the shared error taxonomy onto HTTP statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, common.ErrNoUsableData):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
