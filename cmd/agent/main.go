package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"panel-service/internal/bridge"
	wstypes "panel-service/internal/domain/websocket"
	"panel-service/internal/repository/filestore"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[AGENT] No .env file found, relying on system env vars")
	}

	var (
		serverURL = flag.String("server", envOr("PANEL_SERVER_URL", "http://localhost:8000"), "panel server base url")
		sessionID = flag.String("session", os.Getenv("PANEL_SESSION_ID"), "session id to listen on")
		dataDir   = flag.String("data", envOr("DATA_DIR", "./data"), "local bundle directory")
		profile   = flag.String("profile", envOr("PROFILE_PATH", "./data/profile.json"), "browser profile exchange file")
		mode      = flag.String("mode", "listen", "listen | save | restore")
		domain    = flag.String("domain", "", "domain for save/restore")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	local, err := filestore.NewBundleStore(*dataDir)
	if err != nil {
		logger.Fatal("failed to open bundle store", zap.Error(err))
	}

	browser, err := newFileProfile(*profile, logger)
	if err != nil {
		logger.Fatal("failed to open browser profile", zap.Error(err))
	}

	remote := bridge.NewRemoteStore(*serverURL, *sessionID)
	br := bridge.New(browser, local, remote, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch *mode {
	case "save":
		requireDomain(*domain, logger)
		saved, err := br.Save(ctx, *domain)
		if err != nil {
			logger.Fatal("save failed", zap.String("domain", *domain), zap.Error(err))
		}
		logger.Info("saved", zap.String("domain", *domain), zap.Int("cookies", len(saved.Cookies)))

	case "restore":
		requireDomain(*domain, logger)
		result, err := br.Restore(ctx, *domain)
		if err != nil {
			logger.Fatal("restore failed", zap.String("domain", *domain), zap.Error(err))
		}
		logger.Info("restored",
			zap.String("domain", *domain),
			zap.Int("cookies", result.CookiesRestored),
			zap.Int("failed", len(result.CookiesFailed)),
		)

	case "listen":
		if *sessionID == "" {
			logger.Fatal("listen mode requires -session")
		}

		handler := &agentHandler{logger: logger, profile: browser, cancel: cancel}
		connector := bridge.NewConnector(*serverURL, *sessionID, handler, logger)
		go connector.Run(ctx)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info("agent shutting down")
		case <-ctx.Done():
		}

	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}
}

// agentHandler reacts to server pushes: force_logout wipes the local
// identity so the next launch starts at the login view.
type agentHandler struct {
	logger  *zap.Logger
	profile *fileProfile
	cancel  context.CancelFunc
}

func (h *agentHandler) OnConnected() {}

func (h *agentHandler) OnForceLogout(reason string) {
	h.logger.Info("session terminated by server", zap.String("reason", reason))
	if err := h.profile.ClearIdentity(); err != nil {
		h.logger.Error("failed to clear local identity", zap.Error(err))
	}
	h.cancel()
}

func (h *agentHandler) OnUserLogout() {
	h.cancel()
}

func (h *agentHandler) OnServiceUpdated(data wstypes.ServiceEventData) {
	h.logger.Info("service grant changed",
		zap.String("service", data.Service),
		zap.Bool("granted", data.Granted),
	)
}

func requireDomain(domain string, logger *zap.Logger) {
	if domain == "" {
		logger.Fatal("this mode requires -domain")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
