// Package server exposes the HTTP control surface for the job
// controller: trigger/cancel/pause/resume endpoints, job status,
// watchlist management, and a websocket feed of job updates.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/job"
	"github.com/oddsmith/arbiter/server/auth"
	"github.com/oddsmith/arbiter/watch"
)

// MaxClients bounds concurrent websocket connections.
const MaxClients = 64

// Server is the HTTP control surface. It owns the websocket hub and
// implements job.Broadcaster so controller state changes reach
// connected clients.
type Server struct {
	db          *sql.DB
	cfg         *config.Config
	controller  *job.Controller
	watchStore  *watch.Store
	authHandler *auth.Handler
	logger      *zap.SugaredLogger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan *job.Record
	mu         sync.RWMutex

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the server. The controller's broadcaster is wired here so
// job transitions flow to websocket clients without the controller
// knowing about HTTP.
func New(db *sql.DB, cfg *config.Config, controller *job.Controller, watchStore *watch.Store, logger *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		db:         db,
		cfg:        cfg,
		controller: controller,
		watchStore: watchStore,
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *job.Record, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.authHandler = auth.New(db, cfg.Auth.SessionExpiryHours, logger.Named("auth"), s.corsMiddleware)
	controller.SetBroadcaster(s)
	return s
}

// Auth exposes the auth handler for CLI wiring (user creation shares
// the store).
func (s *Server) Auth() *auth.Handler {
	return s.authHandler
}

// Start binds the listener and serves until Shutdown. It blocks; run it
// from a goroutine when the caller has other work.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHub()
	}()

	s.wg.Add(1)
	s.authHandler.StartSessionSweep(s.wg.Done, s.ctx.Done())

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown drains the HTTP server and closes all websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close connections only; the hub owns the send channels and the
	// pumps exit via ctx.
	s.mu.Lock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// runHub owns the clients map mutations and fans broadcasts out to
// client send channels.
func (s *Server) runHub() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case c := <-s.register:
			s.handleRegister(c)
		case c := <-s.unregister:
			s.handleUnregister(c)
		case rec := <-s.broadcast:
			s.fanOut(rec)
		}
	}
}

func (s *Server) handleRegister(c *client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection", "client_id", c.id)
		c.close()
		return
	}
	s.clients[c] = true
	total := len(s.clients)
	s.mu.Unlock()

	// Queue the connect-time catch-up records from the hub so the send
	// channel is never touched by a goroutine that could race a close.
	for _, rec := range c.backlog {
		select {
		case c.send <- rec:
		default:
		}
	}
	c.backlog = nil

	s.logger.Infow("Client connected", "client_id", c.id, "total_clients", total)
}

func (s *Server) handleUnregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c)
	total := len(s.clients)
	s.mu.Unlock()

	c.close()
	s.logger.Infow("Client disconnected", "client_id", c.id, "total_clients", total)
}

// fanOut delivers a job update to every client. Slow clients are
// dropped rather than allowed to stall the hub.
func (s *Server) fanOut(rec *job.Record) {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- rec:
		default:
			s.logger.Warnw("Client send channel full, removing client", "client_id", c.id)
			s.handleUnregister(c)
		}
	}
}

// BroadcastJobUpdate implements job.Broadcaster. Non-blocking: if the
// hub queue is full the update is dropped, clients converge on the next
// transition or a status poll.
func (s *Server) BroadcastJobUpdate(rec *job.Record) {
	select {
	case s.broadcast <- rec:
	case <-s.ctx.Done():
	default:
		s.logger.Warnw("Broadcast queue full, dropping job update", "job_id", rec.ID)
	}
}
