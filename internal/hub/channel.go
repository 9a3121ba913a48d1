package hub

import (
	"time"

	"github.com/craftmall/communication/internal/stats"
	"go.uber.org/zap"
)

// idleChannelTimeout is how long an empty channel lingers before the hub
// unloads it.
const idleChannelTimeout = time.Minute

// Channel is a named broadcast scope. Private channels are named after a
// user identity; the shared admin channel is joined by every support-staff
// connection.
type Channel struct {
	name          string
	hub           *Hub
	log           *zap.SugaredLogger
	joinChan      chan *Client
	leaveChan     chan *Client
	broadcastChan chan *Envelope
	clients       map[*Client]struct{}
	// killTimer unloads the channel once it has been empty for a while
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newChannel(name string, h *Hub, logger *zap.SugaredLogger) *Channel {
	return &Channel{
		name:          name,
		hub:           h,
		log:           logger,
		joinChan:      make(chan *Client, 256),
		leaveChan:     make(chan *Client, 256),
		broadcastChan: make(chan *Envelope, 256),
		clients:       make(map[*Client]struct{}),
		exit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (ch *Channel) start() {
	ch.log.Debugw("starting channel", "hub", ch.hub.name, "channel", ch.name)
	ch.killTimer = time.NewTimer(idleChannelTimeout)
	ch.killTimer.Stop()

	for {
		select {
		case c := <-ch.joinChan:
			ch.handleJoin(c)
		case c := <-ch.leaveChan:
			ch.handleLeave(c)
		case env := <-ch.broadcastChan:
			ch.broadcast(env)
		case <-ch.killTimer.C:
			ch.log.Debugw("channel idle", "hub", ch.hub.name, "channel", ch.name)
			select {
			case ch.hub.unloadChan <- ch.name:
			default:
			}
		case <-ch.exit:
			ch.handleExit()
			return
		}
	}
}

func (ch *Channel) handleJoin(c *Client) {
	ch.killTimer.Stop()

	if _, ok := ch.clients[c]; ok {
		// already a member, joins are idempotent
		return
	}

	ch.clients[c] = struct{}{}
	c.addChannel(ch)
	ch.log.Debugw("client joined channel", "hub", ch.hub.name, "channel", ch.name, "conn", c.Id())
}

func (ch *Channel) handleLeave(c *Client) {
	if _, ok := ch.clients[c]; !ok {
		return
	}

	delete(ch.clients, c)
	c.delChannel(ch.name)

	if len(ch.clients) == 0 {
		ch.killTimer.Reset(idleChannelTimeout)
	}
}

func (ch *Channel) handleExit() {
	ch.log.Debugw("channel exiting", "hub", ch.hub.name, "channel", ch.name)
	for c := range ch.clients {
		c.delChannel(ch.name)
	}

	close(ch.done)
}

func (ch *Channel) broadcast(env *Envelope) {
	for c := range ch.clients {
		c.Queue(env)
	}

	ch.hub.stats.Incr(stats.MessagesBroadcast)
}
