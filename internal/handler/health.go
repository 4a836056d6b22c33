package handler

import (
	"github.com/gin-gonic/gin"

	"vedelegate-core/internal/handler/response"
)

// HealthCheck reports the current health status of the server
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": "1.0.0",
		"service": "staking-server",
	})
}
