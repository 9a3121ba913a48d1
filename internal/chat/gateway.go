package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/presence"
	"github.com/craftmall/communication/internal/stats"
	"github.com/craftmall/communication/internal/store"
	"github.com/craftmall/communication/internal/types"
	"go.uber.org/zap"
)

// AdminChannel is the shared channel joined by every connection holding the
// administrative role.
const AdminChannel = "admin"

// Gateway is the chat session gateway: it owns presence, dispatches inbound
// events and fans messages out over its hub. It implements
// hub.SessionHandler.
type Gateway struct {
	log      *zap.SugaredLogger
	hub      *hub.Hub
	store    store.MessageStore
	presence *presence.Registry
	stats    stats.Provider

	idleThreshold time.Duration
	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

func NewGateway(logger *zap.SugaredLogger, h *hub.Hub, st store.MessageStore,
	reg *presence.Registry, sp stats.Provider, idleThreshold, sweepInterval time.Duration) *Gateway {
	sp.RegisterMetric(stats.MessagesIn)
	sp.RegisterMetric(stats.RosterBroadcasts)
	sp.RegisterMetric(stats.MalformedEvents)

	return &Gateway{
		log:           logger,
		hub:           h,
		store:         st,
		presence:      reg,
		stats:         sp,
		idleThreshold: idleThreshold,
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
}

// Run drives the periodic idle sweep. It is a safety net for connections
// that vanish without a clean close; normal disconnects deregister presence
// directly.
func (g *Gateway) Run() {
	ticker := time.NewTicker(g.sweepInterval)
	defer func() {
		ticker.Stop()
		close(g.sweepDone)
	}()

	for {
		select {
		case <-ticker.C:
			if removed := g.presence.SweepIdle(g.idleThreshold); len(removed) > 0 {
				g.broadcastRoster()
			}
		case <-g.stopSweep:
			return
		}
	}
}

func (g *Gateway) Stop() {
	close(g.stopSweep)
	<-g.sweepDone
}

// HandleConnect completes the CONNECTED transition. Connections whose
// verified claims carry the administrative role join the admin channel
// immediately and receive the current roster; everyone else waits for an
// explicit join_chat.
func (g *Gateway) HandleConnect(c *hub.Client) {
	if c.Claims().IsAdmin() {
		g.hub.Join(c, AdminChannel)
		c.Queue(hub.NewEnvelope(EventUpdateOnlineUsers, g.presence.ListOnline()))
		g.log.Infow("admin joined", "conn", c.Id(), "user_id", c.Claims().UserId)
	}
}

// HandleInbound dispatches one inbound event. Malformed payloads are dropped
// with a log entry; the connection stays alive.
func (g *Gateway) HandleInbound(c *hub.Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.log.Warnw("dropping malformed event", "conn", c.Id(), "error", err)
		g.stats.Incr(stats.MalformedEvents)
		return
	}

	g.stats.Incr(stats.MessagesIn)

	switch {
	case msg.JoinChat != nil:
		g.handleJoinChat(c, msg.JoinChat)
	case msg.JoinAsAdmin != nil:
		g.handleJoinAsAdmin(c)
	case msg.SendMessage != nil:
		g.handleSendMessage(c, *msg.SendMessage)
	case msg.GetHistory != nil:
		g.handleGetHistory(c, msg.GetHistory.UserId)
	case msg.GetOnlineUsers != nil:
		c.Queue(hub.NewEnvelope(EventOnlineUsers, g.presence.ListOnline()))
	case msg.GetAllChatUsers != nil:
		c.Queue(hub.NewEnvelope(EventAllChatUsers, g.store.AllUsers(context.Background())))
	case msg.GetUserLastMessage != nil:
		g.handleGetUserLastMessage(c, msg.GetUserLastMessage.UserId)
	default:
		g.log.Warnw("dropping event with no known payload", "conn", c.Id())
		g.stats.Incr(stats.MalformedEvents)
	}
}

// HandleDisconnect removes presence by connection handle. Disconnects for
// connections that never joined chat are benign.
func (g *Gateway) HandleDisconnect(c *hub.Client) {
	username, ok := g.presence.UnregisterByConn(c.Id())
	if !ok {
		return
	}

	g.log.Infow("user disconnected", "conn", c.Id(), "user", username)
	g.broadcastRoster()
}

func (g *Gateway) handleJoinChat(c *hub.Client, join *JoinChat) {
	sender := types.NormalizeUsername(join.Sender)
	if sender == "" {
		g.log.Warnw("dropping join_chat without sender", "conn", c.Id())
		g.stats.Incr(stats.MalformedEvents)
		return
	}

	g.hub.Join(c, sender)
	g.presence.Register(sender, c.Id())
	g.log.Infow("user joined chat", "conn", c.Id(), "user", sender)

	if history := g.store.History(context.Background(), sender); len(history) > 0 {
		c.Queue(hub.NewEnvelope(EventChatHistory, HistoryPayload{UserId: sender, History: history}))
	}

	g.broadcastRoster()
}

func (g *Gateway) handleJoinAsAdmin(c *hub.Client) {
	c.Queue(hub.NewEnvelope(EventUpdateOnlineUsers, g.presence.ListOnline()))
}

// handleSendMessage persists the message and fans it out: plain user traffic
// goes to the admin channel plus an echo on the sender's own channel; a
// staff reply goes to the recipient's channel plus the admin channel so all
// observers stay in sync.
func (g *Gateway) handleSendMessage(c *hub.Client, msg types.ChatMessage) {
	msg.Sender = types.NormalizeUsername(msg.Sender)
	msg.Recipient = types.NormalizeUsername(msg.Recipient)
	if msg.Sender == "" || msg.Content == "" {
		g.log.Warnw("dropping invalid send_message", "conn", c.Id(), "sender", msg.Sender)
		g.stats.Incr(stats.MalformedEvents)
		return
	}

	saved := g.store.Save(context.Background(), msg)
	g.presence.Touch(saved.Sender)

	if saved.Recipient != "" {
		g.hub.Broadcast(saved.Recipient, EventAdminReply, saved)
		g.hub.Broadcast(AdminChannel, EventAdminReply, saved)
		return
	}

	g.hub.Broadcast(AdminChannel, EventUserMessage, saved)
	g.hub.Broadcast(saved.Sender, EventChatMessage, saved)
}

func (g *Gateway) handleGetHistory(c *hub.Client, userId string) {
	user := types.NormalizeUsername(userId)
	history := g.store.History(context.Background(), user)
	c.Queue(hub.NewEnvelope(EventChatHistory, HistoryPayload{UserId: user, History: history}))
}

func (g *Gateway) handleGetUserLastMessage(c *hub.Client, userId string) {
	user := types.NormalizeUsername(userId)
	last := g.store.LastMessage(context.Background(), user)
	c.Queue(hub.NewEnvelope(EventUserLastMessage, LastMessagePayload{UserId: user, LastMessage: last}))
}

func (g *Gateway) broadcastRoster() {
	g.hub.Broadcast(AdminChannel, EventUpdateOnlineUsers, g.presence.ListOnline())
	g.stats.Incr(stats.RosterBroadcasts)
}
