package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carelink/dispatchd/core/logger"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 50 * time.Second // under pongTimeout so pings keep the read deadline alive
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSSession is a websocket-backed Session with a buffered write pump.
// A full buffer drops the envelope instead of blocking the publisher.
type WSSession struct {
	id        string
	conn      *websocket.Conn
	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
	log       logger.Logger
}

// Upgrade promotes the HTTP request to a websocket, joins the session to
// the room and starts its pumps. It returns after the upgrade; the session
// lives until the peer disconnects.
func Upgrade(hub *Hub, log logger.Logger, w http.ResponseWriter, r *http.Request, room string) (*WSSession, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	s := &WSSession{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Envelope, sendBuffer),
		done: make(chan struct{}),
		hub:  hub,
		log:  log,
	}
	hub.Join(room, s)
	go s.writePump()
	go s.readPump()
	return s, nil
}

func (s *WSSession) ID() string { return s.id }

// Send queues the envelope for the write pump. Envelopes to a full or
// closed session are dropped silently.
func (s *WSSession) Send(env Envelope) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.send <- env:
	default:
		s.log.Debugf("session %s buffer full, envelope %s dropped", s.id, env.Type)
	}
	return nil
}

// Close tears the connection down and detaches the session from the hub.
// Both pumps call it on their error paths, so it must be safe concurrently.
func (s *WSSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.LeaveAll(s.id)
		err = s.conn.Close()
	})
	return err
}

func (s *WSSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(env); err != nil {
				s.log.Debugf("session %s write failed: %v", s.id, err)
				_ = s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close()
				return
			}
		}
	}
}

// readPump drains the connection so control frames are processed; clients
// do not send application data on this channel.
func (s *WSSession) readPump() {
	defer func() { _ = s.Close() }()
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
