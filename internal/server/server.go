package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"media-resolver/internal/auth"
	"media-resolver/internal/export"
	"media-resolver/internal/monitor"
	"media-resolver/internal/platform"
	"media-resolver/internal/provider"
	"media-resolver/internal/ratelimit"
	"media-resolver/internal/resolver"
	"media-resolver/pkg/models"
)

// Server represents the API server
type Server struct {
	config       *models.Config
	storage      models.Storage
	engine       *resolver.Engine
	monitor      *monitor.Monitor
	authService  *auth.AuthService
	rateLimitMgr *ratelimit.Manager
	httpServer   *http.Server
	logger       zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *models.Config, storage models.Storage) *Server {
	// Create monitor
	mon := monitor.NewMonitor()
	mon.Start()

	// Create auth service
	authSvc := auth.NewAuthService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiry)*time.Hour)
	authSvc.SetStorage(storage)

	// Create default admin user if none exists
	if _, err := storage.GetUserByUsername("admin"); err != nil {
		adminUser, err := authSvc.CreateUser("admin", cfg.Auth.AdminPassword, "admin")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create admin user")
		} else {
			storage.SaveUser(adminUser)
			log.Info().Msg("Created default admin user")
		}
	}

	// Set Gin mode
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create rate limit manager
	rateLimitMgr := ratelimit.NewManager(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		APIRequestsPerSec: cfg.RateLimit.APIRequestsPerSec,
		APIBurst:          cfg.RateLimit.APIBurst,
		WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
	})

	// Build the resolution engine
	classifier := platform.NewClassifier(cfg.Platforms.AllowedDomains)
	providers := provider.Chain(cfg, provider.NewClient(cfg))
	engine := resolver.NewEngine(classifier, rateLimitMgr, providers,
		resolver.WithStorage(storage),
		resolver.WithMonitor(mon),
		resolver.WithTimeouts(
			time.Duration(cfg.Resolver.AttemptTimeout)*time.Second,
			time.Duration(cfg.Resolver.TotalTimeout)*time.Second,
		),
	)

	return &Server{
		config:       cfg,
		storage:      storage,
		engine:       engine,
		monitor:      mon,
		authService:  authSvc,
		rateLimitMgr: rateLimitMgr,
		logger:       zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Start starts the API server
func (s *Server) Start() error {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	s.setupRoutes(router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.monitor.Stop()
	s.rateLimitMgr.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down server")
		return err
	}

	s.logger.Info().Msg("API server stopped")
	return nil
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	authMiddleware := auth.NewAuthMiddleware(s.authService)

	// Health check
	router.GET("/health", s.healthCheck)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(s.rateLimitMgr.Middleware())

	v1 := api.Group("/v1")
	{
		// Resolution endpoint (public); the engine applies its own
		// per-identity admission gate on top of the API middleware
		v1.POST("/resolve", s.resolve)
		v1.GET("/platforms", s.listPlatforms)

		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authLimiter := ratelimit.NewRateLimiter()
			authGroup.Use(authLimiter.Middleware(5, 10))

			authGroup.POST("/login", s.login)
			authGroup.POST("/register", s.register)
			authGroup.POST("/refresh", s.refreshToken)
		}

		// Protected routes
		protected := v1.Group("")
		protected.Use(authMiddleware.Required())
		{
			history := protected.Group("/history")
			{
				history.GET("", s.listHistory)
				history.GET("/export", s.exportHistory)
				history.GET("/:id", s.getHistoryRecord)
				history.DELETE("/:id", s.deleteHistoryRecord)
			}

			stats := protected.Group("/stats")
			{
				stats.GET("", s.getStats)
				stats.GET("/system", s.getSystemStats)
			}
		}
	}
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

// resolveRequest is the inbound resolution request body
type resolveRequest struct {
	URL     string                   `json:"url" binding:"required"`
	Format  string                   `json:"format"`
	Quality string                   `json:"quality"`
	Options models.ConversionOptions `json:"options"`
}

// Resolve handler: turns a media URL into a time-limited download link
func (s *Server) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	format := models.FileFormat(strings.ToUpper(req.Format))
	switch format {
	case models.FormatMP3, models.FormatMP4, models.FormatJPEG, models.FormatPNG, models.FormatWEBP:
	case "":
		format = models.FormatMP4
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format: " + req.Format})
		return
	}

	options := req.Options
	if options.Resolution == "" && req.Quality != "" {
		options.Resolution = req.Quality
	}

	resolution := &models.ResolutionRequest{
		URL:     req.URL,
		Format:  format,
		Options: options,
	}

	result, err := s.engine.Resolve(c.Request.Context(), resolution, c.ClientIP())
	if err != nil {
		s.renderResolutionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"downloadUrl": result.DownloadURL,
		"filename":    result.Filename,
		"fileSize":    result.FileSize,
	})
}

// renderResolutionError maps the failure taxonomy to HTTP statuses
func (s *Server) renderResolutionError(c *gin.Context, err error) {
	var resErr *resolver.Error
	if !errors.As(err, &resErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
		return
	}

	switch resErr.Class {
	case models.FailureInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"error": resErr.Message})
	case models.FailureRateLimited:
		retryAfter := int(resErr.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       resErr.Message,
			"retry_after": retryAfter,
		})
	case models.FailureContentUnavailable:
		c.JSON(http.StatusBadRequest, gin.H{"error": resErr.Message})
	case models.FailureTransientProvider, models.FailureMalformedResponse:
		c.JSON(http.StatusBadGateway, gin.H{"error": resErr.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": resErr.Message})
	}
}

// List supported platforms handler
func (s *Server) listPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platforms": []models.Platform{
			models.PlatformYouTube,
			models.PlatformTikTok,
			models.PlatformInstagram,
			models.PlatformTwitter,
			models.PlatformFacebook,
			models.PlatformReddit,
			models.PlatformVimeo,
			models.PlatformTwitch,
			models.PlatformSoundCloud,
			models.PlatformSpotify,
		},
	})
}

// List history handler
func (s *Server) listHistory(c *gin.Context) {
	filter := models.HistoryFilter{
		Limit: 50,
	}

	if platformParam := c.Query("platform"); platformParam != "" {
		p := models.Platform(platformParam)
		filter.Platform = &p
	}

	if formatParam := c.Query("format"); formatParam != "" {
		f := models.FileFormat(strings.ToUpper(formatParam))
		filter.Format = &f
	}

	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			filter.Limit = l
		}
	}

	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			filter.Offset = o
		}
	}

	records, err := s.storage.ListRecords(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Get history record handler
func (s *Server) getHistoryRecord(c *gin.Context) {
	id := c.Param("id")

	rec, err := s.storage.GetRecord(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Delete history record handler
func (s *Server) deleteHistoryRecord(c *gin.Context) {
	id := c.Param("id")

	if err := s.storage.DeleteRecord(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Record deleted"})
}

// Export history handler
func (s *Server) exportHistory(c *gin.Context) {
	format := export.ExportFormat(c.DefaultQuery("format", "csv"))

	records, err := s.storage.ListRecords(models.HistoryFilter{Limit: 1000})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("history_%s.%s", time.Now().Format("20060102_150405"), format)
	filePath := filepath.Join(os.TempDir(), filename)

	exporter := export.NewHistoryExporter(export.ExportConfig{
		Format:   format,
		FilePath: filePath,
	})
	if err := exporter.Export(records); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(filePath)

	c.FileAttachment(filePath, filename)
}

// Get stats handler
func (s *Server) getStats(c *gin.Context) {
	stats, err := s.storage.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Get system stats handler
func (s *Server) getSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.HealthCheck())
}

// Login handler
func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := s.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// Register handler
func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only admins may create users with elevated roles
	if req.Role != "" && req.Role != "user" {
		user, exists := auth.GetUser(c)
		if !exists || user.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}

	if req.Role == "" {
		req.Role = "user"
	}

	user, err := s.authService.CreateUser(req.Username, req.Password, req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.storage.SaveUser(user); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Refresh token handler
func (s *Server) refreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newToken, err := s.authService.RefreshToken(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// CORS middleware
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Run runs the server with signal handling
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	return s.Stop()
}
