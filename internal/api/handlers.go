package api

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"slices"

	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/types"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorw("json encode failed", "error", err)
	}
}

func (s *App) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
}

// handshakeClaims resolves the connection's identity claims. An absent token
// yields anonymous (zero) claims; a present but unverifiable token is an
// error.
func (s *App) handshakeClaims(r *http.Request) (types.Claims, error) {
	token := extractToken(r)
	if token == "" {
		return types.Claims{}, nil
	}

	return s.verifier.Verify(token)
}

// serveChatWs upgrades a chat connection. Anonymous visitors are allowed:
// the chat widget is available before login.
func (s *App) serveChatWs(w http.ResponseWriter, r *http.Request) {
	claims, err := s.handshakeClaims(r)
	if err != nil {
		s.log.Warnw("rejecting chat connection", "error", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.serveWs(w, r, claims, s.chatHub, s.chatGw)
}

// serveNotifyWs upgrades a notification connection. A verified user id is
// required: there is nothing to deliver to an anonymous visitor.
func (s *App) serveNotifyWs(w http.ResponseWriter, r *http.Request) {
	claims, err := s.handshakeClaims(r)
	if err != nil || claims.UserId == 0 {
		s.log.Warnw("rejecting notification connection", "error", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.serveWs(w, r, claims, s.notifyHub, s.notifyGw)
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request, claims types.Claims, h *hub.Hub, handler hub.SessionHandler) {
	sid, err := shortid.Generate()
	if err != nil {
		s.log.Errorw("failed to generate connection id", "error", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("error upgrading connection", "error", err)
		return
	}

	client := hub.NewClient(sid, claims, conn, h, handler, s.log)
	client.Start()
}

// pushNotification is the backend's trigger: it has already persisted the
// notification and asks us to push it to the owner's channel.
func (s *App) pushNotification(w http.ResponseWriter, r *http.Request) {
	var n types.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if n.TargetUserId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = types.Now()
	}

	s.notifyGw.Publish(n)
	s.writeJson(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// clearHistory drops buffered messages involving a user. Buffer-only
// maintenance; the durable store is not touched.
func (s *App) clearHistory(w http.ResponseWriter, r *http.Request) {
	user := types.NormalizeUsername(r.URL.Query().Get("user"))
	if user == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	removed := s.store.Clear(user)
	s.writeJson(w, http.StatusOK, map[string]any{
		"user":    user,
		"removed": removed,
	})
}

// notificationsProxy forwards the notification REST surface (list, count,
// read acks) to the backend-of-record so browser clients talk to a single
// origin. The caller's own credentials pass through untouched.
func (s *App) notificationsProxy() http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(s.backendURL)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		s.log.Errorw("notification proxy error", "path", r.URL.Path, "error", err)
		errResp := &ApiError{
			StatusCode: http.StatusBadGateway,
			Message:    lower(http.StatusText(http.StatusBadGateway)),
			Err:        err,
		}
		s.writeJson(w, errResp.StatusCode, errResp)
	}

	return proxy
}
