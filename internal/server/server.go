package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/config"
	"github.com/stackit/stackit/backend/internal/database"
	"github.com/stackit/stackit/backend/internal/handlers"
	"github.com/stackit/stackit/backend/internal/middleware"
	"github.com/stackit/stackit/backend/internal/response"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	authn   middleware.Authenticator
	limiter *middleware.RateLimiter
	log     *slog.Logger
}

func New(cfg *config.Config, db database.Service, handler *handlers.Handler, authn middleware.Authenticator, limiter *middleware.RateLimiter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		authn:   authn,
		limiter: limiter,
		log:     log,
	}
}

// HTTPServer returns an http.Server serving the API on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(s.cfg.CORSOrigin, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperrors.NotFound("Route "+c.Request.URL.Path+" not found"))
	})

	requireAuth := middleware.RequireAuth(s.authn)
	optionalAuth := middleware.OptionalAuth(s.authn)

	api := r.Group("/api")
	if s.limiter != nil {
		api.Use(s.limiter.Handler())
	}

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", s.handler.Auth.Register)
		authRoutes.POST("/login", s.handler.Auth.Login)

		authRoutes.GET("/me", requireAuth, s.handler.Auth.GetMe)
		authRoutes.PUT("/profile", requireAuth, s.handler.Auth.UpdateProfile)
		authRoutes.PUT("/change-password", requireAuth, s.handler.Auth.ChangePassword)
		authRoutes.POST("/logout", requireAuth, s.handler.Auth.Logout)
	}

	questions := api.Group("/questions")
	{
		questions.GET("", optionalAuth, s.handler.Question.GetQuestions)
		questions.GET("/:id", optionalAuth, s.handler.Question.GetQuestion)

		questions.POST("", requireAuth, s.handler.Question.CreateQuestion)
		questions.PUT("/:id", requireAuth, s.handler.Question.UpdateQuestion)
		questions.DELETE("/:id", requireAuth, s.handler.Question.DeleteQuestion)
		questions.POST("/:id/vote", requireAuth, s.handler.Question.VoteQuestion)
	}

	answers := api.Group("/answers")
	{
		answers.GET("/question/:id", optionalAuth, s.handler.Answer.GetAnswers)

		answers.POST("", requireAuth, s.handler.Answer.CreateAnswer)
		answers.PUT("/:id", requireAuth, s.handler.Answer.UpdateAnswer)
		answers.DELETE("/:id", requireAuth, s.handler.Answer.DeleteAnswer)
		answers.POST("/:id/vote", requireAuth, s.handler.Answer.VoteAnswer)
	}

	users := api.Group("/users")
	{
		users.GET("/:id", s.handler.User.GetUserProfile)
		users.GET("/:id/questions", s.handler.User.GetUserQuestions)
	}

	aiRoutes := api.Group("/ai", requireAuth)
	{
		aiRoutes.POST("/questions/:id/answer", s.handler.AI.GenerateAnswer)
		aiRoutes.POST("/questions/auto-tags", s.handler.AI.AutoTags)
		aiRoutes.POST("/content/summarize", s.handler.AI.Summarize)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	dbHealth := s.db.Health(c.Request.Context())

	status := http.StatusOK
	overall := "ok"
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":      overall,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.cfg.AppEnv,
		"database":    dbHealth,
	})
}
