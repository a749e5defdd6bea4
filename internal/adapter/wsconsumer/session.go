// Package wsconsumer connects browser pages to the bridge over a websocket.
// The page evaluates scripts sent by the host and answers with the result.
//
// Frames are JSON text messages:
//
//	page -> host  {"type":"loaded"}
//	host -> page  {"type":"eval","id":"...","script":"..."}
//	page -> host  {"type":"result","id":"...","result":"...","error":"..."}
package wsconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/pipeline"
)

const (
	typeLoaded = "loaded"
	typeEval   = "eval"
	typeResult = "result"

	writeTimeout = 5 * time.Second
)

// ErrClosed is returned by Evaluate after the connection ends.
var ErrClosed = errors.New("websocket session closed")

type message struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Script string `json:"script,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type result struct {
	value string
	err   error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Upgrade switches an HTTP request to a websocket session.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return NewSession(conn, logger), nil
}

// Session is one connected page. It implements pipeline.Consumer and
// pipeline.LoadNotifier.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan result
	onLoad  []func()
	loaded  bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an established connection. Call Run to start reading.
func NewSession(conn *websocket.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan result),
		closed:  make(chan struct{}),
	}
}

// Run reads frames until the connection fails or ctx ends. Pending
// evaluations fail with ErrClosed when it returns.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	defer func() { _ = s.Close() }()

	for {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || s.isClosed() {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch msg.Type {
		case typeLoaded:
			s.markLoaded()
		case typeResult:
			s.resolve(msg)
		default:
			s.logger.Debug("ignoring websocket frame", "type", msg.Type)
		}
	}
}

// Evaluate sends a script to the page and waits for its result.
func (s *Session) Evaluate(ctx context.Context, script string) (string, error) {
	id := uuid.NewString()
	ch := make(chan result, 1)

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return "", ErrClosed
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(message{Type: typeEval, ID: id, Script: script}); err != nil {
		return "", err
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.closed:
		return "", ErrClosed
	}
}

// OnLoadFinished registers fn for every "loaded" frame. If the page already
// reported loading, fn runs immediately.
func (s *Session) OnLoadFinished(fn func()) {
	s.mu.Lock()
	s.onLoad = append(s.onLoad, fn)
	loaded := s.loaded
	s.mu.Unlock()

	if loaded {
		fn()
	}
}

// WeakHandle returns a handle that does not keep the session alive.
func (s *Session) WeakHandle() pipeline.Handle {
	return pipeline.Weak(s)
}

// Close ends the session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Session) write(msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConsumerNotReady, err)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConsumerNotReady, err)
	}
	return nil
}

func (s *Session) markLoaded() {
	s.mu.Lock()
	s.loaded = true
	fns := append([]func(){}, s.onLoad...)
	s.mu.Unlock()

	s.logger.Debug("consumer page loaded")
	for _, fn := range fns {
		fn()
	}
}

func (s *Session) resolve(msg message) {
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("result for unknown evaluation", "id", msg.ID)
		return
	}

	r := result{value: msg.Result}
	if msg.Error != "" {
		r.err = fmt.Errorf("script error: %s", msg.Error)
	}
	select {
	case ch <- r:
	default: // duplicate result
	}
}
