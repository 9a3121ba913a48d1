package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/craftmall/communication/internal/chat"
	"github.com/craftmall/communication/internal/config"
	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/notify"
	"github.com/craftmall/communication/internal/store"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

// App is the HTTP surface of the communication service: the two websocket
// endpoints, the internal service-to-service endpoints and the notification
// REST proxy.
type App struct {
	log            *zap.SugaredLogger
	mux            *http.Server
	chatHub        *hub.Hub
	notifyHub      *hub.Hub
	chatGw         *chat.Gateway
	notifyGw       *notify.Gateway
	store          store.MessageStore
	verifier       TokenVerifier
	internalSecret string
	allowedOrigins []string
	backendURL     *url.URL
}

func NewApp(mux *http.ServeMux, logger *zap.SugaredLogger, chatHub, notifyHub *hub.Hub,
	chatGw *chat.Gateway, notifyGw *notify.Gateway, st store.MessageStore,
	verifier TokenVerifier, cfg *config.Config) (*App, error) {
	backendURL, err := url.Parse(cfg.BackendBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}

	s := &App{
		log:            logger,
		chatHub:        chatHub,
		notifyHub:      notifyHub,
		chatGw:         chatGw,
		notifyGw:       notifyGw,
		store:          st,
		verifier:       verifier,
		internalSecret: cfg.InternalSecret,
		allowedOrigins: cfg.AllowedOrigins,
		backendURL:     backendURL,
	}

	mux.HandleFunc("GET /ws/chat", s.serveChatWs)
	mux.HandleFunc("GET /ws/notifications", s.serveNotifyWs)
	mux.Handle("POST /internal/notifications", s.internalAuth(s.pushNotification))
	mux.Handle("DELETE /internal/chat/history", s.internalAuth(s.clearHistory))
	mux.Handle("/api/notifications/", s.notificationsProxy())

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s, nil
}

func (s *App) Start() error {
	s.log.Infow("starting server", "addr", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
