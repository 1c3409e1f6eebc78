package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"halitebot.ai/internal/observerproto"
	"halitebot.ai/internal/sim/encoding"
	"halitebot.ai/internal/sim/turn"
)

// Info describes the running game for the bootstrap endpoint.
type Info struct {
	Bot      string
	Me       int
	Width    int
	Height   int
	MaxTurns int
}

type session struct {
	id    string
	units atomic.Bool
	out   chan []byte
}

// Server fans finished turn summaries out to websocket observers. Publish
// never blocks the turn loop; slow observers miss turns.
type Server struct {
	info Info
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	lastTurn atomic.Int64

	mu        sync.Mutex
	sessions  map[string]*session
	haliteMap string
	dropped   atomic.Uint64
}

func NewServer(info Info, logger *log.Logger) *Server {
	return &Server{
		info:     info,
		log:      logger,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/ws", s.WSHandler())
	return mux
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Publish queues rec for every subscribed observer.
func (s *Server) Publish(rec turn.Record) {
	if s == nil {
		return
	}
	s.lastTurn.Store(int64(rec.Turn))
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return
	}
	var brief, full []byte
	for _, sess := range s.sessions {
		withUnits := sess.units.Load()
		b := brief
		if withUnits {
			b = full
		}
		if b == nil {
			var err error
			b, err = json.Marshal(observerproto.NewTurnMsg(rec, withUnits))
			if err != nil {
				s.logf("observer: marshal turn %d: %v", rec.Turn, err)
				return
			}
			if withUnits {
				full = b
			} else {
				brief = b
			}
		}
		select {
		case sess.out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

// UpdateMap stores the latest halite layer for the bootstrap endpoint.
func (s *Server) UpdateMap(halite []int) {
	if s == nil {
		return
	}
	enc := encoding.EncodeRLE(halite)
	s.mu.Lock()
	s.haliteMap = enc
	s.mu.Unlock()
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Bot:             s.info.Bot,
			Me:              s.info.Me,
			Width:           s.info.Width,
			Height:          s.info.Height,
			MaxTurns:        s.info.MaxTurns,
			Turn:            int(s.lastTurn.Load()),
		}
		s.mu.Lock()
		resp.HaliteRLE = s.haliteMap
		s.mu.Unlock()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{
			id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out: make(chan []byte, 16),
		}
		sess.units.Store(sub.Units)
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
		}()
		s.logf("observer: %s subscribed from %s", sess.id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				sess.units.Store(sub.Units)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	return sub, sub.Type == observerproto.TypeSubscribe && sub.ProtocolVersion == observerproto.Version
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
