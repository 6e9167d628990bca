package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collaborative-document-editor/auth"
	"collaborative-document-editor/internal/config"
	"collaborative-document-editor/internal/db"
	"collaborative-document-editor/internal/document"
	applog "collaborative-document-editor/internal/log"
	"collaborative-document-editor/internal/metrics"
	"collaborative-document-editor/internal/middleware"
	"collaborative-document-editor/internal/user"
	"collaborative-document-editor/internal/worker"
	"collaborative-document-editor/internal/ws"
	"collaborative-document-editor/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	config.LoadConfig()
	applog.Init(config.AppConfig.Environment)

	// Connect to database
	db.ConnectDb()
	defer db.CloseDb()

	// Migrate database schema
	db.Migrate()

	// Seed database with initial data (for development)
	db.SeedData()

	// Initialize Redis
	redis.InitRedis(config.AppConfig.RedisAddress)
	cache := redis.NewCache(redis.RedisClient)

	// Background workers for audit-log appends from the REST layer
	pool := worker.NewWorkerPool(4)
	defer pool.Shutdown()

	// Initialize repositories
	userRepo := user.NewRepository(db.AppDb)
	docRepo := document.NewRepository(db.AppDb)
	// Initialize services
	userService := user.NewService(userRepo)
	docService := document.NewService(docRepo, userService, cache, pool)
	// Initialize handlers
	userHandler := user.NewHandler(userService, cache)
	docHandler := document.NewHandler(docService)

	// Realtime session engine over the same repository
	engine := ws.NewEngine(docRepo)

	authMw := &auth.Auth{Users: userService, Tokens: cache}

	// Initialize Gin router
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.ErrorHandler())
	router.Use(metrics.GinMiddleware())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if config.AppConfig.Environment == "development" {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	} else {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{config.AppConfig.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	// User routes
	router.POST("/register", userHandler.Register)
	router.POST("/login", userHandler.Login)
	router.DELETE("/logout", authMw.AuthMiddleWare(), userHandler.Logout)
	router.GET("/profile", authMw.AuthMiddleWare(), userHandler.GetProfile)

	// Document routes
	router.POST("/documents", authMw.AuthMiddleWare(), docHandler.Create)
	router.GET("/documents", authMw.AuthMiddleWare(), docHandler.ShowUserDocuments)
	router.GET("/documents/shared", authMw.AuthMiddleWare(), docHandler.ShowSharedDocuments)
	router.GET("/documents/:id", authMw.AuthMiddleWare(), docHandler.ShowDocument)
	router.DELETE("/documents/:id", authMw.AuthMiddleWare(), docHandler.DeleteDocument)
	router.POST("/documents/:id/share", authMw.AuthMiddleWare(), docHandler.ShareDocument)
	router.POST("/documents/:id/toggle-public", authMw.AuthMiddleWare(), docHandler.TogglePublic)
	router.POST("/documents/:id/versions", authMw.AuthMiddleWare(), docHandler.SaveVersion)
	router.GET("/documents/:id/versions", authMw.AuthMiddleWare(), docHandler.ListVersions)
	router.POST("/documents/:id/versions/:versionId/restore", authMw.AuthMiddleWare(), docHandler.RestoreVersion)

	// Realtime room endpoint; identity is optional here, the session state
	// machine closes anonymous connections itself
	router.GET("/ws/document/:id", authMw.WSAuthMiddleware(), ws.Serve(engine))

	// Operational endpoints
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Server configuration
	serverPort := config.AppConfig.ServerPort
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverPort),
		Handler: router.Handler(),
	}

	// Start server
	go func() {
		log.Info().Str("port", serverPort).Msg("Server listening")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
}
