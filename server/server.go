package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/network"
	"github.com/wfunc/roulette/round"
)

// Options configure the HTTP and websocket front.
type Options struct {
	Address        string
	AllowedOrigins []string
	Connection     network.Options
	MessageRate    float64
	MessageBurst   int
	AuthTimeout    time.Duration
}

// GameServer accepts websocket connections and feeds their signals into the
// round coordinator, one reader goroutine per connection.
type GameServer struct {
	opts        Options
	coordinator *round.Coordinator
	metrics     http.Handler
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	conns       map[string]*network.WSConnection
	mutex       sync.Mutex
	wg          sync.WaitGroup
}

// NewGameServer builds a server. metrics may be nil, in which case /metrics is not mounted.
func NewGameServer(opts Options, coordinator *round.Coordinator, metrics http.Handler) *GameServer {
	if opts.MessageRate <= 0 {
		opts.MessageRate = 20
	}
	if opts.MessageBurst <= 0 {
		opts.MessageBurst = 40
	}
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Second
	}

	s := &GameServer{
		opts:        opts,
		coordinator: coordinator,
		metrics:     metrics,
		conns:       make(map[string]*network.WSConnection),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router mounts /ws, /health and /metrics.
func (s *GameServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *GameServer) Start() error {
	logger.Log.Infow("game server listening", "address", s.opts.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes live websockets and waits for
// their readers to finish or ctx to expire.
func (s *GameServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mutex.Lock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logger.Log.Warnw("origin rejected", "origin", origin)
	return false
}

// credentials reads basic auth, falling back to the id and secret query parameters.
func credentials(r *http.Request) auth.Credentials {
	if id, secret, ok := r.BasicAuth(); ok {
		return auth.Credentials{Identity: id, Secret: secret}
	}
	q := r.URL.Query()
	return auth.Credentials{Identity: q.Get("id"), Secret: q.Get("secret")}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	creds := credentials(r)
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infow("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := network.NewWSConnection(uuid.NewString(), ws, s.opts.Connection)
	logger.Log.Infow("new connection", "conn", conn.ID(), "remote", conn.RemoteAddr())

	s.track(conn)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.untrack(conn)
		s.serve(conn, creds)
	}()
}

func (s *GameServer) serve(conn *network.WSConnection, creds auth.Credentials) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.AuthTimeout)
	_, err := s.coordinator.Join(ctx, conn, creds)
	cancel()
	if err != nil {
		// Join already sent the refusal and closed the connection.
		<-conn.Done()
		return
	}

	defer func() {
		s.coordinator.Leave(conn.ID())
		_ = conn.Close()
		logger.Log.Infow("connection closed", "conn", conn.ID())
	}()

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessageRate), s.opts.MessageBurst)
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Infow("read failed", "conn", conn.ID(), "error", err)
			}
			return
		}
		if !limiter.Allow() {
			logger.Log.Warnw("rate limit exceeded, frame dropped", "conn", conn.ID())
			continue
		}

		msg, err := network.Decode(frame)
		if err != nil {
			logger.Log.Warnw("unrecognized signal, closing connection", "conn", conn.ID(), "error", err)
			return
		}

		err = s.coordinator.Handle(conn.ID(), msg)
		switch {
		case err == nil:
		case errors.Is(err, network.ErrUnrecognizedSignal):
			logger.Log.Warnw("signal rejected, closing connection", "conn", conn.ID(), "error", err)
			return
		case errors.Is(err, round.ErrStaleSignal), errors.Is(err, bet.ErrInvalidBet):
			logger.Log.Debugw("signal ignored", "conn", conn.ID(), "error", err)
		default:
			logger.Log.Warnw("signal handling failed", "conn", conn.ID(), "event", msg.Event(), "error", err)
		}
	}
}

func (s *GameServer) track(c *network.WSConnection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.conns[c.ID()] = c
}

func (s *GameServer) untrack(c *network.WSConnection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.conns, c.ID())
}

type healthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	Player    bool   `json:"player"`
	Observers int    `json:"observers"`
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.coordinator.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		State:     snap.State.String(),
		Player:    snap.PlayerID != "",
		Observers: snap.Observers,
	})
}
