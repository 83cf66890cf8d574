// Package ws streams world change events to websocket clients.
//
// A client sends HELLO (optionally with since_cursor to resume), receives
// WELCOME and then one EVENT per change. EVENT_BATCH_REQ pages through the
// retained backlog. Clients that fall behind are disconnected and resume
// from their last cursor.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"outpost.gg/internal/protocol"
	"outpost.gg/internal/sim/world/events"
)

// Source is the world as seen by the stream.
type Source interface {
	ID() string
	Events() *events.Bus
}

type Server struct {
	src Source
	log *log.Logger

	upgrader websocket.Upgrader
	queue    int
}

func NewServer(src Source, logger *log.Logger) *Server {
	return &Server{
		src: src,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		queue: 512,
	}
}

// session is one connected client. Writes go through out so only the writer
// goroutine touches the connection.
type session struct {
	kinds  []string
	out    chan []byte
	cancel context.CancelFunc

	overflow atomic.Bool

	mu   sync.Mutex
	last uint64 // highest cursor considered for the client
}

func (ss *session) wants(kind events.Kind) bool {
	return len(ss.kinds) == 0 || slices.Contains(ss.kinds, string(kind))
}

// push queues b without blocking; a full queue ends the session.
func (ss *session) push(b []byte) bool {
	select {
	case ss.out <- b:
		return true
	default:
		ss.overflow.Store(true)
		ss.cancel()
		return false
	}
}

func (ss *session) deliver(it events.CursorItem) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.deliverLocked(it)
}

func (ss *session) deliverLocked(it events.CursorItem) {
	if it.Cursor <= ss.last || ss.overflow.Load() {
		return
	}
	ss.last = it.Cursor
	if !ss.wants(it.Event.Kind) {
		return
	}
	b, err := json.Marshal(protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Cursor:          it.Cursor,
		Event:           it.Event.Wire(),
	})
	if err != nil {
		return
	}
	ss.push(b)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		ss := &session{kinds: hello.Kinds, out: make(chan []byte, s.queue), cancel: cancel}

		bus := s.src.Events()
		// Live events wait on ss.mu until WELCOME and the backlog replay are
		// queued; the cursor check drops anything replayed twice.
		ss.mu.Lock()
		unsubscribe := bus.Subscribe(ss.deliver)
		defer unsubscribe()
		cursor := bus.Cursor()
		welcome, _ := json.Marshal(protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			WorldID:         s.src.ID(),
			Cursor:          cursor,
		})
		ss.push(welcome)
		if hello.SinceCursor > 0 && hello.SinceCursor < cursor {
			ss.last = hello.SinceCursor
			replay(ss, bus, cursor)
		}
		ss.last = cursor
		ss.mu.Unlock()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-ss.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		go func() {
			<-ctx.Done()
			// Unblocks ReadMessage when the writer or an overflow ends the session.
			_ = conn.SetReadDeadline(time.Now())
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeEventBatchReq {
				continue
			}
			var req protocol.EventBatchReqMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			if b, err := json.Marshal(s.batch(ss, req)); err == nil {
				if !ss.push(b) {
					break
				}
			}
		}
		cancel()

		reason, code := "bye", websocket.CloseNormalClosure
		if ss.overflow.Load() {
			reason, code = "slow consumer, resume from last cursor", websocket.CloseTryAgainLater
			if s.log != nil {
				s.log.Printf("[ws] dropped slow client from %s", r.RemoteAddr)
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// replay queues retained events in (ss.last, upto]. Callers hold ss.mu.
func replay(ss *session, bus *events.Bus, upto uint64) {
	for ss.last < upto && !ss.overflow.Load() {
		items, _ := bus.Since(ss.last, 256)
		if len(items) == 0 {
			return
		}
		for _, it := range items {
			if it.Cursor > upto {
				return
			}
			ss.deliverLocked(it)
		}
	}
}

func (s *Server) batch(ss *session, req protocol.EventBatchReqMsg) protocol.EventBatchMsg {
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 256
	}
	items, next := s.src.Events().Since(req.SinceCursor, limit)
	resp := protocol.EventBatchMsg{
		Type:            protocol.TypeEventBatch,
		ProtocolVersion: protocol.Version,
		ReqID:           req.ReqID,
		Events:          []protocol.EventBatchItem{},
		NextCursor:      next,
		WorldID:         s.src.ID(),
	}
	for _, it := range items {
		if !ss.wants(it.Event.Kind) {
			continue
		}
		resp.Events = append(resp.Events, protocol.EventBatchItem{Cursor: it.Cursor, Event: it.Event.Wire()})
	}
	return resp
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return hello, false
	}
	for _, k := range hello.Kinds {
		if !slices.Contains(events.Kinds, events.Kind(k)) {
			closeWith(conn, websocket.ClosePolicyViolation, "unknown kind "+k)
			return hello, false
		}
	}
	return hello, true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
