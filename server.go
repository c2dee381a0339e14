package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const serviceName = "smartspend-api"

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	cfg       *Config
	store     Store
	cache     *Cache
	blobs     BlobStore
	events    EventPublisher
	dashboard *DashboardAggregator
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(cfg *Config, store Store, cache *Cache, blobs BlobStore, events EventPublisher, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		cache:     cache,
		blobs:     blobs,
		events:    events,
		dashboard: NewDashboardAggregator(store, store, store),
		logger:    logger,
		now:       time.Now,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.Recovery())

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(sessionMiddleware(s.cfg))

	// Routes
	r.GET("/health", s.healthCheck)

	api := r.Group("/api")
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/logout", s.logout)
	api.GET("/categories", s.getCategories)
	api.GET("/community-tips", s.getCommunityTips)
	api.GET("/deals", s.getDeals)

	auth := api.Group("", s.requireAuth)
	auth.GET("/user", s.getUser)

	auth.GET("/transactions", s.getTransactions)
	auth.POST("/transactions", s.addTransaction)
	auth.POST("/transactions/upload", s.uploadTransactions)
	auth.PUT("/transactions/:id", s.updateTransaction)
	auth.DELETE("/transactions/:id", s.deleteTransaction)

	auth.POST("/categories", s.addCategory)

	auth.GET("/budgets", s.getBudgets)
	auth.GET("/budgets/summary", s.getBudgetSummary)
	auth.POST("/budgets", s.addBudget)
	auth.PUT("/budgets/:id", s.updateBudget)
	auth.DELETE("/budgets/:id", s.deleteBudget)

	auth.POST("/community-tips", s.addCommunityTip)
	auth.POST("/community-tips/:id/like", s.likeCommunityTip)
	auth.POST("/deals", s.addDeal)

	auth.GET("/alerts", s.getAlerts)
	auth.PUT("/alerts/:id/read", s.markAlertRead)

	auth.GET("/dashboard", s.getDashboard)

	return r
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
