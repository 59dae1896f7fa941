// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/internal/usage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeQuotaError(c *gin.Context, err error) {
	if errors.Is(err, usage.ErrInsufficientTokens) {
		writeError(c, http.StatusTooManyRequests, err.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, "internal error")
}
