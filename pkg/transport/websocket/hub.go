package websocket

import (
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

type hubConn struct {
	conn     *websocket.Conn
	sendLock sync.Mutex
}

func (c *hubConn) send(msg []byte) error {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()
	return websocket.Message.Send(c.conn, msg)
}

// Hub relays bus messages between connected sockets.
type Hub struct {
	lock  sync.RWMutex
	conns map[*hubConn]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*hubConn]struct{})}
}

// Handler is the http.Handler accepting websocket connections.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

// Len is the number of connected sockets.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.conns)
}

func (h *Hub) serve(conn *websocket.Conn) {
	c := &hubConn{conn: conn}
	h.lock.Lock()
	h.conns[c] = struct{}{}
	h.lock.Unlock()
	glog.V(1).Infof("hub: %s connected", conn.Request().RemoteAddr)

	defer func() {
		h.lock.Lock()
		delete(h.conns, c)
		h.lock.Unlock()
		conn.Close()
		glog.V(1).Infof("hub: %s disconnected", conn.Request().RemoteAddr)
	}()

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		if len(msg) < MessageHeaderSize {
			glog.Errorf("hub: %v from %s", ErrShortMessage, conn.Request().RemoteAddr)
			continue
		}
		if glog.V(5) {
			if pkt, err := DecodeMessage(msg); err == nil {
				glog.Infof("hub: %s -> %s % x", pkt.Source, pkt.Dest, pkt.Data)
			}
		}
		h.relay(c, msg)
	}
}

func (h *Hub) relay(from *hubConn, msg []byte) {
	h.lock.RLock()
	peers := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		if c != from {
			peers = append(peers, c)
		}
	}
	h.lock.RUnlock()
	for _, c := range peers {
		if err := c.send(msg); err != nil {
			glog.Warningf("hub: relay to %s error: %v", c.conn.Request().RemoteAddr, err)
		}
	}
}
