package router

import (
	"net/http"

	"github.com/cuongbtq/clipper-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "clipper-api-service",
		})
	})

	// Initialize clip handler
	clipHandler := handler.NewClipHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		clips := v1.Group("/clips")
		{
			// POST /api/v1/clips/generate - Submit a clip generation job
			clips.POST("/generate", clipHandler.GenerateClips)

			// GET /api/v1/clips/status/:job_id - Get job status snapshot
			clips.GET("/status/:job_id", clipHandler.GetJobStatus)

			// GET /api/v1/clips/:job_id/clips/:index - Download one clip
			clips.GET("/:job_id/clips/:index", clipHandler.DownloadClip)

			// GET /api/v1/clips/:job_id/download - Download all clips as a zip
			clips.GET("/:job_id/download", clipHandler.DownloadAll)

			// DELETE /api/v1/clips/:job_id - Delete a job and its files
			clips.DELETE("/:job_id", clipHandler.DeleteJob)
		}
	}

	return r
}
