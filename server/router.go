package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ApiVersion = "v1"

func SetupRouter(controller Controller) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/" + ApiVersion)
	api.GET("/sheets/:sheet", controller.GetSheetAction)
	api.GET("/sheets/:sheet/:cell", controller.GetCellAction)
	api.POST("/sheets/:sheet/:cell", controller.SetCellAction)
	api.DELETE("/sheets/:sheet/:cell", controller.DeleteCellAction)
	api.POST("/evaluate", controller.EvaluateAction)
	api.POST("/cache/clear", controller.ClearCacheAction)

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health")
	})

	return router
}
