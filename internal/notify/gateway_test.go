package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/stats"
	"github.com/craftmall/communication/internal/testutil"
	"github.com/craftmall/communication/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestChannelName(t *testing.T) {
	assert.Equal(t, "7", ChannelName(7), "expected channel name to be the decimal user id")
	assert.Equal(t, "0", ChannelName(0), "expected zero id to map to its own name")
}

type notifyHarness struct {
	t       *testing.T
	hub     *hub.Hub
	gateway *Gateway
	srv     *httptest.Server
}

func newNotifyHarness(t *testing.T) *notifyHarness {
	logger := testutil.TestLogger(t)

	h := hub.NewHub("notify", logger, stats.NopStats{})
	go h.Run()

	gw := NewGateway(logger, h, stats.NopStats{})

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		uid, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		claims := types.Claims{UserId: uid}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade test connection: %v", err)
			return
		}

		client := hub.NewClient(r.URL.Query().Get("id"), claims, conn, h, gw, logger)
		client.Start()
	})

	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := h.Shutdown(ctx); err != nil {
			t.Errorf("failed to shut down test hub: %v", err)
		}
	})

	return &notifyHarness{t: t, hub: h, gateway: gw, srv: srv}
}

func (nh *notifyHarness) dial(query string) *websocket.Conn {
	nh.t.Helper()

	wsURL := "ws" + strings.TrimPrefix(nh.srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		nh.t.Fatalf("failed to dial %s: %v", wsURL, err)
	}
	nh.t.Cleanup(func() { conn.Close() })

	// give the hub a moment to process the private channel join
	time.Sleep(50 * time.Millisecond)

	return conn
}

func TestPublish(t *testing.T) {
	nh := newNotifyHarness(t)

	owner := nh.dial("id=conn-7&uid=7")
	other := nh.dial("id=conn-8&uid=8")

	notification := types.Notification{
		Id:           1,
		TargetUserId: 7,
		SenderUserId: 99,
		Message:      "your order shipped",
		Type:         "ORDER",
		CreatedAt:    types.Now(),
	}
	nh.gateway.Publish(notification)

	owner.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := owner.ReadMessage()
	assert.NoError(t, err, "expected the owner to receive a frame")

	var env struct {
		Event string             `json:"event"`
		Data  types.Notification `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(raw, &env), "expected valid envelope")
	assert.Equal(t, EventNewNotification, env.Event, "expected new_notification event")
	assert.Equal(t, notification, env.Data, "expected notification payload to match")

	// the other user's channel stays quiet
	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "expected no frame for a different user")
}

func TestPublish_OfflineOwner(t *testing.T) {
	nh := newNotifyHarness(t)

	// nobody is connected for user 7; the push is dropped silently and the
	// owner catches up from the backend's list endpoint later
	nh.gateway.Publish(types.Notification{Id: 1, TargetUserId: 7, Message: "missed"})
}

func TestHandleInbound_Ignored(t *testing.T) {
	nh := newNotifyHarness(t)

	conn := nh.dial("id=conn-7&uid=7")

	// inbound frames on the notification socket are ignored, not fatal
	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"anything":true}`)), "expected write to succeed")

	nh.gateway.Publish(types.Notification{Id: 2, TargetUserId: 7, Message: "still here"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	assert.NoError(t, err, "expected the connection to survive inbound frames")
	assert.Contains(t, string(raw), EventNewNotification, "expected a push after the ignored frame")
}
