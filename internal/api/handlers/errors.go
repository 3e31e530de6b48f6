package handlers

import (
	"context"
	"errors"
	"net/http"

	"rec-lem-prices/internal/api/models"
	"rec-lem-prices/internal/model"

	"github.com/gin-gonic/gin"
)

// errorDetail maps the error taxonomy onto an HTTP status and error code.
func errorDetail(err error) (int, models.ErrorDetail) {
	detail := models.ErrorDetail{Message: err.Error()}
	var collab *model.CollaboratorError
	switch {
	case errors.Is(err, model.ErrShapeMismatch):
		detail.Code = "SHAPE_MISMATCH"
		return http.StatusBadRequest, detail
	case errors.Is(err, model.ErrInvalidParameter):
		detail.Code = "INVALID_PARAMETER"
		return http.StatusBadRequest, detail
	case errors.Is(err, model.ErrInvariantViolation):
		detail.Code = "INVARIANT_VIOLATION"
		return http.StatusUnprocessableEntity, detail
	case errors.Is(err, context.DeadlineExceeded):
		detail.Code = "TIMEOUT"
		return http.StatusGatewayTimeout, detail
	case errors.As(err, &collab):
		detail.Code = "SCHEDULER_ERROR"
		detail.Details = map[string]interface{}{"stage": collab.Stage}
		if len(collab.Statuses) > 0 {
			detail.Details["statuses"] = collab.Statuses
		}
		return http.StatusBadGateway, detail
	default:
		detail.Code = "RUN_ERROR"
		return http.StatusInternalServerError, detail
	}
}

func writeError(c *gin.Context, err error) {
	status, detail := errorDetail(err)
	c.JSON(status, models.ErrorResponse{Error: detail})
}

func badRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
