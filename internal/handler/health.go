package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "loop-support",
		"time":    time.Now().Unix(),
	})
}

func Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func APIRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Support API",
		"version": "0.1.0",
		"endpoints": []string{
			"GET /api/health",
			"POST /api/session",
			"GET /api/session/{session_id}",
			"POST /api/session/{session_id}/messages",
			"POST /api/session/{session_id}/new-ticket",
			"POST /api/tickets/{ticket_id}/close",
			"POST /api/tickets/{ticket_id}/reopen",
		},
	})
}
