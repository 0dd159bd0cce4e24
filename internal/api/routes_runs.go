package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/sqlpulse/internal/handlers"
)

func registerRunRoutes(api *gin.RouterGroup, handler *handlers.RunHandler, limit, authn gin.HandlerFunc) {
	if api == nil || handler == nil {
		return
	}

	runs := api.Group("/runs")
	runs.POST("/:pipeline", limit, authn, handler.Trigger)
}
