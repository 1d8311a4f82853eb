package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lexamine/lexam-backend/internal/config"
	"github.com/lexamine/lexam-backend/internal/handler"
	"github.com/lexamine/lexam-backend/internal/middleware"
	"github.com/lexamine/lexam-backend/internal/response"
	"github.com/lexamine/lexam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	Batch    *handler.BatchHandler
	Examinee *handler.ExamineeHandler
	Score    *handler.ScoreHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// Restrict CORS to the configured origin list; allow all when unset so
	// dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	// Public auth endpoints.
	auth := api.Group("/auth")
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)
	}

	// Authenticated auth endpoints.
	authCandidate := api.Group("/auth/candidate")
	authCandidate.Use(middleware.RequireCandidateJWT(authService))
	authCandidate.Use(middleware.CheckSingleDeviceSession(authService))
	{
		authCandidate.GET("/me", handlers.Auth.GetCandidateProfile)
		authCandidate.POST("/logout", handlers.Auth.CandidateLogout)
	}

	authAdmin := api.Group("/auth/admin")
	authAdmin.Use(middleware.RequireAdminJWT(authService))
	{
		authAdmin.GET("/me", handlers.Auth.GetAdminProfile)
	}

	// Candidate exam session endpoints.
	exam := api.Group("/exam")
	exam.Use(middleware.RequireCandidateJWT(authService))
	exam.Use(middleware.CheckSingleDeviceSession(authService))
	{
		exam.GET("/batches", handlers.Exam.ListMyBatches)
		exam.GET("/ebs", handlers.Exam.ListJoinableBatches)
		exam.POST("/join/:batch_id", handlers.Exam.Join)
		exam.GET("/papers/:batch_id", handlers.Exam.GetPaper)
		exam.POST("/start/:batch_id", handlers.Exam.Start)
		exam.POST("/answers", handlers.Exam.SaveAnswer)
		exam.POST("/submit/:batch_id", handlers.Exam.Submit)
	}

	// Admin endpoints.
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdminJWT(authService))
	{
		batches := admin.Group("/batches")
		{
			batches.GET("", handlers.Batch.Pages)
			batches.GET("/enabled", handlers.Batch.ListEnabled)
			batches.POST("", handlers.Batch.Create)
			batches.POST("/delete", handlers.Batch.Delete)
			batches.GET("/:batch_id", handlers.Batch.Get)
			batches.PUT("/:batch_id", handlers.Batch.Update)
			batches.POST("/:batch_id/toggle-release", handlers.Batch.ToggleRelease)
			batches.POST("/:batch_id/toggle-distribute", handlers.Batch.ToggleDistribute)
		}

		examinees := admin.Group("/examinees")
		{
			examinees.POST("/review", handlers.Examinee.Review)
			examinees.GET("/:batch_id", handlers.Examinee.Pages)
			examinees.GET("/:batch_id/optional", handlers.Examinee.OptionalPages)
			examinees.POST("/:batch_id/bind", handlers.Examinee.Bind)
			examinees.POST("/:batch_id/remove", handlers.Examinee.Remove)
			examinees.POST("/:batch_id/import", handlers.Examinee.Import)
		}

		scores := admin.Group("/scores")
		{
			scores.GET("/:batch_id", handlers.Score.Pages)
			scores.GET("/:batch_id/export", handlers.Score.Export)
			scores.GET("/:batch_id/:user_id", handlers.Score.Detail)
		}
	}

	return router
}
