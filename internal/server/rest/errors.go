package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/pilosopo/internal/common"
	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch common.KindOf(err) {
	case common.ErrValidation:
		return http.StatusBadRequest
	case common.ErrInvalidCredentials:
		return http.StatusUnauthorized
	case common.ErrNotFound:
		return http.StatusNotFound
	case common.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": msg} plus any partial-failure details.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	body := gin.H{"error": common.Message(err)}
	var pe *services.PartialError
	if errors.As(err, &pe) {
		for k, v := range pe.Details {
			body[k] = v
		}
	}
	c.JSON(statusFor(err), body)
}
