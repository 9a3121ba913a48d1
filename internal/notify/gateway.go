package notify

import (
	"strconv"

	"github.com/craftmall/communication/internal/hub"
	"github.com/craftmall/communication/internal/stats"
	"go.uber.org/zap"

	"github.com/craftmall/communication/internal/types"
)

// EventNewNotification is pushed to the owner's private channel when the
// backend delivers a new notification.
const EventNewNotification = "new_notification"

// Gateway is the notification side-channel: structurally the same hub as
// chat, but every connection is placed on exactly one private channel named
// by its numeric user id, and traffic flows one way, system to owner. There
// is no shared channel here; read-acks happen over plain HTTP, not the
// socket. It implements hub.SessionHandler.
type Gateway struct {
	log   *zap.SugaredLogger
	hub   *hub.Hub
	stats stats.Provider
}

func NewGateway(logger *zap.SugaredLogger, h *hub.Hub, sp stats.Provider) *Gateway {
	sp.RegisterMetric(stats.NotificationsPushed)

	return &Gateway{
		log:   logger,
		hub:   h,
		stats: sp,
	}
}

// ChannelName maps a user id to its private notification channel.
func ChannelName(userId int64) string {
	return strconv.FormatInt(userId, 10)
}

func (g *Gateway) HandleConnect(c *hub.Client) {
	uid := c.Claims().UserId
	if uid == 0 {
		// the HTTP layer rejects anonymous notification sockets; a zero id
		// here means the connection will simply never receive anything
		g.log.Warnw("notification connection without user id", "conn", c.Id())
		return
	}

	g.hub.Join(c, ChannelName(uid))
	g.log.Infow("notification channel joined", "conn", c.Id(), "user_id", uid)
}

// HandleInbound ignores client frames: the notification socket is push-only.
func (g *Gateway) HandleInbound(c *hub.Client, raw []byte) {
	g.log.Debugw("ignoring inbound frame on notification socket", "conn", c.Id())
}

func (g *Gateway) HandleDisconnect(c *hub.Client) {
	g.log.Debugw("notification connection closed", "conn", c.Id())
}

// Publish pushes a notification to its owner's private channel. Offline
// owners miss the push and catch up from the backend's list endpoint.
func (g *Gateway) Publish(n types.Notification) {
	g.hub.Broadcast(ChannelName(n.TargetUserId), EventNewNotification, n)
	g.stats.Incr(stats.NotificationsPushed)
}
