package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PingHandler - liveness probe, no auth.
func PingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
