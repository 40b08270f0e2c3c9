package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/controllers"
	"github.com/qaforum/qaforum/middleware"
	"github.com/qaforum/qaforum/rpc"
	"github.com/qaforum/qaforum/services"
	"github.com/qaforum/qaforum/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	secureCfg := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	// Only add SSL headers when TLS terminates here rather than at a proxy
	if cfg.SSL {
		secureCfg.SSLRedirect = true
		secureCfg.STSSeconds = 31536000
		secureCfg.STSIncludeSubdomains = true
	}
	r.Use(secure.New(secureCfg))

	questions := services.NewQuestionService(db)
	if rc := utils.GetRedis(); rc != nil {
		questions.WithCache(utils.NewRedisCache(rc), time.Duration(cfg.FeedCacheSeconds)*time.Second)
	}
	comments := services.NewCommentService(db, questions)
	users := services.NewUserService(db, questions, cfg.AdminUsernames)

	r.Use(middleware.Session(users))
	// Record question views after each request
	r.Use(middleware.ViewRecorder(db))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(users)
	statsController := controllers.NewStatsController(db)

	procedures := rpc.NewRouter(cfg.IsDevelopment()).
		Register("", controllers.Healthz()).
		Register("question", controllers.NewQuestionController(questions).Procedures()...).
		Register("comment", controllers.NewCommentController(comments).Procedures()...).
		Register("user", controllers.NewUserController(users).Procedures()...)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/session", authController.Session)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)

	// Public stats endpoint
	api.GET("/stats", statsController.GetStats)

	rpcGroup := api.Group("/rpc")
	rpcGroup.GET("/:procedure", procedures.Handle)
	rpcGroup.POST("/:procedure", middleware.RateLimit(cfg.RateLimitPerMinute), procedures.Handle)
	// other methods reach the router so it can answer METHOD_NOT_SUPPORTED
	for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rpcGroup.Handle(m, "/:procedure", procedures.Handle)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
