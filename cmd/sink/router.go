package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberfield/statline/cmd/sink/middlewares"
)

func newRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.ZapLogger(logger))
	r.Use(middlewares.GzipRequest())

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.POST("/api/put", h.Put)
	r.POST("/api/metadata/put", h.PutMetadata)
	r.GET("/api/series", h.Series)
	r.GET("/api/metadata", h.Metadata)

	return r
}
