package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Close()
}

type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	sendOne    chan sendReq
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	log        *log.Logger
}

type broadcastReq struct {
	Addresses []string
	Message   OutgoingMessage
}

type sendReq struct {
	Address string
	Message OutgoingMessage
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq, 256),
		sendOne:    make(chan sendReq, 256),
		incoming:   make(chan IncomingMessage, 256),
		quit:       make(chan struct{}),
		log:        logger.With("component", "hub"),
	}
}

func (h *Hub) Run() {
	h.log.Info("Hub started")
	go h.dispatch()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.Address]; ok && old != c {
				close(old.Send) // 同一地址重连，踢掉旧连接
			}
			h.clients[c.Address] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client registered", "address", c.Address, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.Address]; ok && cur == c {
				delete(h.clients, c.Address)
				close(c.Send)
				h.log.Info("client unregistered", "address", c.Address, "clients", len(h.clients))
			}
			h.mu.Unlock()

		case req := <-h.broadcast:
			for _, addr := range req.Addresses {
				h.deliver(addr, req.Message)
			}

		case req := <-h.sendOne:
			h.deliver(req.Address, req.Message)

		case <-h.quit:
			h.mu.Lock()
			for addr, c := range h.clients {
				close(c.Send)
				delete(h.clients, addr)
			}
			h.mu.Unlock()
			return
		}
	}
}

// dispatch 把玩家消息转发给游戏层，独立于 Run 以免游戏层回推消息时互相阻塞
func (h *Hub) dispatch() {
	for {
		select {
		case msg := <-h.incoming:
			if h.OnIncoming != nil {
				h.OnIncoming(msg)
			}
		case <-h.quit:
			return
		}
	}
}

// deliver never blocks; a client whose buffer is full misses the message.
func (h *Hub) deliver(addr string, msg OutgoingMessage) {
	h.mu.RLock()
	c, ok := h.clients[addr]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.Send <- msg:
	default:
		h.log.Warn("client send buffer full, dropping message", "address", addr, "event", msg.Event)
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	select {
	case h.broadcast <- broadcastReq{Addresses: addrs, Message: msg}:
	case <-h.quit:
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	select {
	case h.sendOne <- sendReq{Address: addr, Message: msg}:
	case <-h.quit:
	}
}

// Lookup for a player client by address
func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addr]
	return c, ok
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}
