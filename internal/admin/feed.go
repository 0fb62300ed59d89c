package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/LeJamon/goXRPLpay/internal/payout"
)

const (
	// feedSendBuffer is the per-connection outgoing queue. A consumer
	// that falls this far behind is disconnected rather than allowed to
	// stall event publication.
	feedSendBuffer = 256

	feedWriteTimeout = 10 * time.Second
	feedPongTimeout  = 60 * time.Second
	feedPingInterval = 54 * time.Second
	feedReadLimit    = 4 * 1024
)

// Feed streams payment lifecycle events to WebSocket subscribers. It
// implements payout.EventSink; Publish never blocks.
type Feed struct {
	upgrader websocket.Upgrader
	log      *log.Entry

	mu    sync.Mutex
	conns map[*feedConn]struct{}
}

type feedConn struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// NewFeed creates an event feed with no subscribers.
func NewFeed(logger *log.Entry) *Feed {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Feed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Admin surface binds to localhost; the operator decides
				// exposure at the config level.
				return true
			},
		},
		log:   logger.WithField("component", "admin-feed"),
		conns: make(map[*feedConn]struct{}),
	}
}

// Publish fans the event out to every subscriber. Connections whose
// queue is full are dropped.
func (f *Feed) Publish(ev payout.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		f.log.WithError(err).Warn("dropping unmarshalable event")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.conns {
		select {
		case c.send <- data:
		default:
			f.log.Warn("dropping slow event subscriber")
			delete(f.conns, c)
			c.cancel()
		}
	}
}

// Subscribers returns the number of connected consumers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	// The upgrade hijacked the connection; its lifetime is governed by the
	// read and write loops, not the request context (which net/http cancels
	// as soon as this handler returns).
	ctx, cancel := context.WithCancel(context.Background())
	c := &feedConn{
		conn:   conn,
		send:   make(chan []byte, feedSendBuffer),
		cancel: cancel,
	}

	f.mu.Lock()
	f.conns[c] = struct{}{}
	f.mu.Unlock()

	go f.readLoop(ctx, c)
	go f.writeLoop(ctx, c)
}

// readLoop discards client frames; the feed is one-way. It exists to
// service pongs and to notice disconnects.
func (f *Feed) readLoop(ctx context.Context, c *feedConn) {
	defer f.drop(c)

	c.conn.SetReadLimit(feedReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.log.WithError(err).Debug("event subscriber read error")
			}
			return
		}
	}
}

func (f *Feed) writeLoop(ctx context.Context, c *feedConn) {
	defer f.drop(c)

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (f *Feed) drop(c *feedConn) {
	f.mu.Lock()
	delete(f.conns, c)
	f.mu.Unlock()
	c.cancel()
	_ = c.conn.Close()
}

// Close disconnects every subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	conns := make([]*feedConn, 0, len(f.conns))
	for c := range f.conns {
		conns = append(conns, c)
	}
	f.conns = make(map[*feedConn]struct{})
	f.mu.Unlock()

	for _, c := range conns {
		c.cancel()
		_ = c.conn.Close()
	}
}

// FeedServer serves the event feed over HTTP at /events.
type FeedServer struct {
	feed     *Feed
	server   *http.Server
	listener net.Listener
	log      *log.Entry

	mu      sync.Mutex
	running bool
}

// NewFeedServer wraps a Feed in an HTTP server on the given address.
func NewFeedServer(address string, feed *Feed, logger *log.Entry) (*FeedServer, error) {
	if address == "" {
		return nil, errors.New("admin: websocket address is required")
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	mux := http.NewServeMux()
	mux.Handle("/events", feed)

	return &FeedServer{
		feed:   feed,
		server: &http.Server{Addr: address, Handler: mux},
		log:    logger.WithField("component", "admin-feed"),
	}, nil
}

// Start listens and serves in the background.
func (s *FeedServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("admin: feed server already running")
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Warn("event feed server stopped")
		}
	}()

	s.log.WithField("address", listener.Addr().String()).Info("event feed listening")
	return nil
}

// Stop shuts the HTTP server down and disconnects subscribers.
func (s *FeedServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.feed.Close()
	return s.server.Shutdown(ctx)
}

// Address returns the bound listen address, "" before Start.
func (s *FeedServer) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
