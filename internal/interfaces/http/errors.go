package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoicing/internal/domain/entity"
)

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, entity.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends the error envelope. Internal errors are logged and their
// message is not exposed.
func (h *Handlers) writeError(c *gin.Context, err error) {
	h.writeErrorWithData(c, err, nil)
}

// writeErrorWithData is writeError for operations that return a partial
// result together with their error.
func (h *Handlers) writeErrorWithData(c *gin.Context, err error, data interface{}) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"error", err,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(requestIDKey))
		msg = "internal server error"
	}

	var verr *entity.ValidationError
	if errors.As(err, &verr) {
		c.JSON(status, Response{Data: data, Error: msg, Field: verr.Field})
		return
	}
	c.JSON(status, Response{Data: data, Error: msg})
}
