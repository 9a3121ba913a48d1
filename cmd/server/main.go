package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/craftmall/communication/internal/api"
	"github.com/craftmall/communication/internal/chat"
	"github.com/craftmall/communication/internal/config"
	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/notify"
	"github.com/craftmall/communication/internal/presence"
	"github.com/craftmall/communication/internal/stats"
	"github.com/craftmall/communication/internal/store"
	"go.uber.org/zap"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	backendURL     string
	internalSecret string
	signingKey     string
	idleThreshold  time.Duration
	sweepInterval  time.Duration
	debug          bool
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:3001", "server address")
	flag.StringVar(&backendURL, "backend-url", "http://localhost:8080", "base URL of the backend-of-record")
	flag.StringVar(&internalSecret, "internal-secret", "", "shared secret for service-to-service calls")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded JWT signing key")
	flag.DurationVar(&idleThreshold, "idle-threshold", config.DefaultIdleThreshold, "inactivity threshold for the presence sweep")
	flag.DurationVar(&sweepInterval, "sweep-interval", config.DefaultSweepInterval, "how often the presence sweep runs")
	flag.BoolVar(&debug, "debug", false, "enable development logging")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	zapLogger, err := newZapLogger(debug)
	if err != nil {
		log.Fatalf("zap: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	cfg, err := config.NewConfig(addr, backendURL, internalSecret, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatalw("config", "error", err)
	}
	cfg.IdleThreshold = idleThreshold
	cfg.SweepInterval = sweepInterval

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	backend := store.NewBackendClient(cfg.BackendBaseURL, cfg.InternalSecret)
	msgStore := store.NewFallbackStore(logger, backend)

	registry := presence.NewRegistry(logger)

	chatHub := hub.NewHub("chat", logger, statsUpdater)
	notifyHub := hub.NewHub("notify", logger, statsUpdater)

	chatGateway := chat.NewGateway(logger, chatHub, msgStore, registry, statsUpdater,
		cfg.IdleThreshold, cfg.SweepInterval)
	notifyGateway := notify.NewGateway(logger, notifyHub, statsUpdater)

	verifier := api.NewHmacVerifier(cfg.SigningKey)

	app, err := api.NewApp(mux, logger, chatHub, notifyHub, chatGateway, notifyGateway,
		msgStore, verifier, cfg)
	if err != nil {
		logger.Fatalw("new app", "error", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatHub.Run()
	go notifyHub.Run()
	go chatGateway.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infow("received signal", "signal", sig.String())
	case err := <-errCh:
		logger.Errorw("server", "error", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalw("HTTP server shutdown", "error", err)
	}

	chatGateway.Stop()

	logger.Info("shutting down hubs...")
	if err := chatHub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalw("chat hub shutdown", "error", err)
	}
	if err := notifyHub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalw("notify hub shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

func newZapLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
