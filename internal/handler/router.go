package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seralt/askdoc/internal/middleware"
)

type RouterDeps struct {
	Index           *IndexHandler
	Query           *QueryHandler
	RateLimitWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents/:id/index", deps.Index.Index)
	api.DELETE("/documents/:id", deps.Index.Delete)
	api.GET("/stats", deps.Index.Stats)

	api.POST("/retrieve", deps.Query.Retrieve)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimitWindow))
	limited.POST("/answer", deps.Query.Answer)
}
