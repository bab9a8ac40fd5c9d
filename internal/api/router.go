package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with all routes registered
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", handler.Health)
	router.GET("/list-folder", handler.ListFolder)
	router.GET("/list-downloads", handler.ListDownloads)
	router.GET("/downloads/:name", handler.ServeDownload)
	router.DELETE("/delete-file/:name", handler.DeleteFile)
	router.POST("/download-zip-tree", handler.DownloadZipTree)
	router.POST("/zip-and-send-lark", handler.ZipAndSendLark)
	router.GET("/progress/:sessionId", handler.Progress)

	return router
}

// corsMiddleware allows browser clients on other origins to call the
// API and read attachment headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
