// Package router assembles the gin engine and the /api/v1 route table.
package router

import (
	"time"

	"field-review/backend/internal/handlers"
	"field-review/backend/internal/middleware"
	"field-review/backend/internal/monitoring"
	"field-review/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type Dependencies struct {
	Auth       services.AuthService
	Tasks      services.TaskService
	Attendance services.AttendanceService
	Monitor    *monitoring.Monitor

	// Limiter guards the credential and verification routes. Nil disables it.
	Limiter     *middleware.RateLimiter
	Logger      *log.Logger
	CORSOrigins []string
}

func New(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}
	if deps.Monitor == nil {
		deps.Monitor = monitoring.NewMonitor()
	}

	r := gin.New()
	r.Use(middleware.RecoveryWithLog(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(deps.Monitor.Middleware())
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))

	r.GET("/health", deps.Monitor.HealthHandler())
	r.GET("/ready", deps.Monitor.ReadinessHandler())
	r.GET("/live", deps.Monitor.LivenessHandler())
	r.GET("/metrics", deps.Monitor.MetricsHandler())

	limited := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		limited = deps.Limiter.Middleware()
	}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	taskHandler := handlers.NewTaskHandler(deps.Tasks)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Attendance)

	api := r.Group("/api/v1")

	public := api.Group("/auth")
	public.POST("/login", limited, authHandler.Login)
	public.POST("/register", limited, authHandler.Register)
	public.POST("/password/forgot", limited, authHandler.ForgotPassword)

	authed := api.Group("")
	authed.Use(middleware.AuthzMiddleware(deps.Auth))
	authed.POST("/auth/refresh", authHandler.Refresh)
	authed.POST("/auth/logout", limited, authHandler.Logout)
	authed.POST("/auth/password", authHandler.ChangePassword)
	authed.GET("/me", handlers.Me)
	authed.POST("/verification", limited, authHandler.Verify)

	verified := authed.Group("")
	verified.Use(middleware.RequireVerified())
	verified.GET("/dashboard", taskHandler.Dashboard)
	verified.GET("/categories", taskHandler.Categories)
	verified.GET("/tasks/pending", taskHandler.Pending)
	verified.GET("/tasks/reviewed", taskHandler.Reviewed)
	verified.GET("/tasks/:id", taskHandler.Get)
	verified.POST("/tasks/:id/review", taskHandler.Review)
	verified.GET("/reviews/history", taskHandler.History)
	verified.POST("/attendance", attendanceHandler.Mark)
	verified.GET("/attendance/today", attendanceHandler.Today)
	verified.GET("/attendance/history", attendanceHandler.History)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
