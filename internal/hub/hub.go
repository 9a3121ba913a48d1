package hub

import (
	"context"
	"sync"

	"github.com/craftmall/communication/internal/stats"
	"go.uber.org/zap"
)

type joinReq struct {
	client  *Client
	channel string
}

type broadcastReq struct {
	channel string
	env     *Envelope
}

// Hub is a scoped pub/sub broker: it owns a set of named channels,
// tracks connected clients and fans envelopes out to channel members.
// The chat gateway and the notification gateway each run their own Hub;
// they differ only in channel naming and in the SessionHandler their
// clients carry.
type Hub struct {
	name           string
	log            *zap.SugaredLogger
	stats          stats.Provider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	channels       map[string]*Channel
	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan joinReq
	broadcastChan  chan broadcastReq
	unloadChan     chan string
	stop           chan struct{}
	done           chan struct{}
}

func NewHub(name string, logger *zap.SugaredLogger, st stats.Provider) *Hub {
	st.RegisterMetric(stats.ActiveConnections)
	st.RegisterMetric(stats.ActiveChannels)
	st.RegisterMetric(stats.MessagesBroadcast)

	return &Hub{
		name:           name,
		log:            logger,
		stats:          st,
		clients:        make(map[*Client]struct{}),
		channels:       make(map[string]*Channel),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		joinChan:       make(chan joinReq, 256),
		broadcastChan:  make(chan broadcastReq, 256),
		unloadChan:     make(chan string),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case join := <-h.joinChan:
			ch, ok := h.channels[join.channel]
			if !ok {
				ch = newChannel(join.channel, h, h.log)
				h.channels[join.channel] = ch
				h.stats.Incr(stats.ActiveChannels)
				go ch.start()
			}

			select {
			case ch.joinChan <- join.client:
			default:
				h.log.Warnw("join channel full", "hub", h.name, "channel", ch.name)
			}
		case req := <-h.broadcastChan:
			ch, ok := h.channels[req.channel]
			if !ok {
				// nobody has joined this scope; nothing to deliver
				continue
			}

			select {
			case ch.broadcastChan <- req.env:
			default:
				h.log.Warnw("broadcast channel full", "hub", h.name, "channel", ch.name)
			}
		case client := <-h.registerChan:
			h.log.Debugw("adding connection", "hub", h.name, "conn", client.Id())
			h.addClient(client)
			h.stats.Incr(stats.ActiveConnections)
		case client := <-h.deregisterChan:
			h.log.Debugw("removing connection", "hub", h.name, "conn", client.Id())
			h.removeClient(client)
			h.stats.Decr(stats.ActiveConnections)
		case name := <-h.unloadChan:
			if ch, ok := h.channels[name]; ok {
				delete(h.channels, name)
				h.stats.Decr(stats.ActiveChannels)
				close(ch.exit)
				<-ch.done
			}
		case <-h.stop:
			h.log.Infow("shutting down channels", "hub", h.name)
			for _, ch := range h.channels {
				close(ch.exit)
				<-ch.done
			}

			close(h.done)
			return
		}
	}
}

// Register adds a client to the hub. The client is not a member of any
// channel until Join is called.
func (h *Hub) Register(c *Client) {
	h.registerChan <- c
}

// Join adds the client to the named channel, creating the channel on first
// use. Joining a channel the client is already in is a no-op.
func (h *Hub) Join(c *Client, channel string) {
	select {
	case h.joinChan <- joinReq{client: c, channel: channel}:
	default:
		h.log.Warnw("join queue full, dropping join", "hub", h.name, "channel", channel)
	}
}

// Broadcast delivers an event to every member of the named channel. Within
// one channel, delivery order matches the order Broadcast was called.
func (h *Hub) Broadcast(channel, event string, data any) {
	select {
	case h.broadcastChan <- broadcastReq{channel: channel, env: NewEnvelope(event, data)}:
	default:
		h.log.Warnw("broadcast queue full, dropping event", "hub", h.name, "channel", channel, "event", event)
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	delete(h.clients, c)
}

// Shutdown stops all clients and channels and waits for the run loop to
// drain, or gives up when ctx expires.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.clientsLock.Lock()
	for c := range h.clients {
		c.stopClient()
	}
	h.clientsLock.Unlock()

	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
