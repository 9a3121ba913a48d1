package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/craftmall/communication/internal/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// SessionHandler gives a hub instantiation its semantics: the chat gateway
// and the notification gateway each implement this against the same Client.
type SessionHandler interface {
	// HandleConnect runs once the client is registered with the hub, before
	// any frames are read.
	HandleConnect(c *Client)
	// HandleInbound runs for every raw text frame read from the connection.
	HandleInbound(c *Client, raw []byte)
	// HandleDisconnect runs once when the connection goes away, after the
	// client has left all channels.
	HandleDisconnect(c *Client)
}

// Client is one websocket connection known to a hub.
type Client struct {
	id           string
	conn         *websocket.Conn
	hub          *Hub
	log          *zap.SugaredLogger
	claims       types.Claims
	handler      SessionHandler
	send         chan *Envelope
	channels     map[string]*Channel
	channelsLock sync.RWMutex
	stop         chan struct{}
	stopOnce     sync.Once
}

func NewClient(id string, claims types.Claims, conn *websocket.Conn, h *Hub, handler SessionHandler, logger *zap.SugaredLogger) *Client {
	return &Client{
		id:       id,
		conn:     conn,
		hub:      h,
		log:      logger,
		claims:   claims,
		handler:  handler,
		send:     make(chan *Envelope, 256),
		channels: make(map[string]*Channel),
		stop:     make(chan struct{}),
	}
}

// Id returns the connection handle.
func (c *Client) Id() string {
	return c.id
}

func (c *Client) Claims() types.Claims {
	return c.claims
}

// Start registers the client with the hub, runs the connect hook and starts
// the read/write pumps.
func (c *Client) Start() {
	c.hub.Register(c)
	c.handler.HandleConnect(c)
	go c.Write()
	go c.Read()
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debugw("write exiting", "conn", c.id)
	}()

	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(env)
			if err != nil {
				c.log.Errorw("failed to serialize envelope", "conn", c.id, "error", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debugw("read exiting", "conn", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warnw("read error", "conn", c.id, "error", err)
			}
			break
		}

		c.handler.HandleInbound(c, raw)
	}
}

// Queue enqueues an envelope for delivery to this client. Returns false if
// the client's send queue is full.
func (c *Client) Queue(env *Envelope) bool {
	select {
	case c.send <- env:
	default:
		c.log.Warnw("send queue full, dropping envelope", "conn", c.id, "event", env.Event)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warnw("write error", "conn", c.id, "error", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.hub.deregisterChan <- c
	c.leaveAllChannels()
	c.handler.HandleDisconnect(c)
	c.stopClient()
}

func (c *Client) leaveAllChannels() {
	c.channelsLock.RLock()
	defer c.channelsLock.RUnlock()

	for _, ch := range c.channels {
		select {
		case ch.leaveChan <- c:
		default:
			c.log.Warnw("leave channel full", "conn", c.id, "channel", ch.name)
		}
	}
}

func (c *Client) addChannel(ch *Channel) {
	c.channelsLock.Lock()
	defer c.channelsLock.Unlock()

	c.channels[ch.name] = ch
}

func (c *Client) delChannel(name string) {
	c.channelsLock.Lock()
	defer c.channelsLock.Unlock()

	delete(c.channels, name)
}

// InChannel reports whether the client is currently joined to the named
// channel.
func (c *Client) InChannel(name string) bool {
	c.channelsLock.RLock()
	defer c.channelsLock.RUnlock()

	_, ok := c.channels[name]
	return ok
}
