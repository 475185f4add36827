package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/courseworks/registrar-backend/internal/config"
	"github.com/courseworks/registrar-backend/internal/handler"
	"github.com/courseworks/registrar-backend/internal/middleware"
	"github.com/courseworks/registrar-backend/internal/model"
	"github.com/courseworks/registrar-backend/internal/response"
	"github.com/courseworks/registrar-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Student    *handler.StudentHandler
	Instructor *handler.InstructorHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireAuth(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireRole(authService, model.RoleStudent),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/add-class", handlers.Student.GetAddClass)
		studentAPI.POST("/add-class", handlers.Student.AddClass)
		studentAPI.POST("/drop-class", handlers.Student.DropClass)
		studentAPI.GET("/course-dictionary", handlers.Student.GetCourseDictionary)
		studentAPI.POST("/course-dictionary", handlers.Student.SearchCourseDictionary)
		studentAPI.POST("/change-password", handlers.Student.ChangePassword)
	}

	// ─── 3. Instructor Group (JWT) ─────────────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(middleware.RequireRole(authService, model.RoleInstructor))
	{
		instructorAPI.POST("/create-class", handlers.Instructor.CreateClass)
		instructorAPI.POST("/delete-class", handlers.Instructor.DeleteClass)
		instructorAPI.GET("/course-dictionary", handlers.Instructor.GetCourseDictionary)
		instructorAPI.POST("/course-dictionary", handlers.Instructor.SearchCourseDictionary)
		instructorAPI.POST("/change-password", handlers.Instructor.ChangePassword)
	}

	// ─── 4. WebSocket Group (Instructor WS Auth) ───────────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(middleware.RequireInstructorWSAuth(authService))
	{
		wsAPI.GET("/instructor/classes/:course_number/roster", handlers.WS.RosterStream)
	}

	return router
}
