// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"panel-service/internal/config"
	"panel-service/internal/db"
	authHandler "panel-service/internal/handlers/auth"
	bundleHandler "panel-service/internal/handlers/bundle"
	sessionHandler "panel-service/internal/handlers/session"
	userHandler "panel-service/internal/handlers/user"
	wsHandler "panel-service/internal/handlers/websocket"
	"panel-service/internal/ledger"
	"panel-service/internal/middleware"
	"panel-service/internal/registry"
	"panel-service/internal/repository/filestore"
	"panel-service/internal/repository/postgres"
	"panel-service/internal/repository/redisstore"
	accountUsecase "panel-service/internal/service/account"
	terminationUsecase "panel-service/internal/service/termination"
	"panel-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.NewPostgresPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Repositories -----
	historyRepo := postgres.NewHistoryRepository(pool)
	if err := historyRepo.EnsureSchema(ctx); err != nil {
		return err
	}
	activeStore := redisstore.NewActiveStore(redisClient)
	userStore, err := filestore.NewUserStore(s.cfg.DataDir)
	if err != nil {
		return err
	}
	bundleStore, err := filestore.NewBundleStore(s.cfg.DataDir)
	if err != nil {
		return err
	}

	// ----- Core -----
	reg := registry.New(userStore, activeStore, historyRepo, logger)
	led := ledger.New(historyRepo, reg, s.cfg.InactiveAfter, s.cfg.TerminateAfter, logger)

	// Close ledger entries orphaned by a previous run before traffic arrives.
	if _, err := led.Reconcile(ctx); err != nil {
		logger.Error("startup reconciliation failed", zap.Error(err))
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(activeStore)
	go hub.Run(context.Background())

	// ----- Services -----
	terminator := terminationUsecase.NewCoordinator(reg, led, hub, s.cfg.ForceLogoutGrace, logger)
	accounts := accountUsecase.NewService(userStore, reg, terminator, hub, logger)

	// ----- Root admin bootstrap -----
	if err := s.initializeRootAdmin(accounts); err != nil {
		logger.Error("failed to initialize root admin", zap.Error(err))
		// Don't fail startup, just log the error
	}

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(reg, terminator, logger)
	sessionHandlerInst := sessionHandler.NewSessionHandler(reg, led, terminator, userStore, logger)
	userHandlerInst := userHandler.NewUserHandler(accounts, logger)
	bundleHandlerInst := bundleHandler.NewBundleHandler(bundleStore, logger)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(reg)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:    authHandlerInst,
		SessionHandler: sessionHandlerInst,
		UserHandler:    userHandlerInst,
		BundleHandler:  bundleHandlerInst,
		WSHandler:      wsHandlerInst,
		AuthMiddleware: authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// initializeRootAdmin creates the bootstrap admin if it doesn't exist.
func (s *Server) initializeRootAdmin(accounts *accountUsecase.Service) error {
	username := os.Getenv("ROOT_ADMIN_USERNAME")
	secret := os.Getenv("ROOT_ADMIN_SECRET")

	if username == "" {
		username = "admin"
		s.logger.Warn("ROOT_ADMIN_USERNAME not set, using default", zap.String("username", username))
	}
	if secret == "" {
		secret = "ChangeMe12!"
		s.logger.Warn("ROOT_ADMIN_SECRET not set, using default secret")
	}

	if len(secret) < 8 {
		return fmt.Errorf("root admin secret must be at least 8 characters")
	}

	return accounts.EnsureRootAdmin(username, secret)
}
