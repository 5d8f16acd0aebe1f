// Package api serves read-only snapshots of a running simulation over REST
// and WebSocket. It consumes the controller's published snapshots and never
// calls back into the engine, so the simulation stays single-threaded.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"marketsim/pkg/sim"
)

// Server holds the latest snapshot and fans updates out to WebSocket
// clients. It implements sim.SnapshotPublisher.
type Server struct {
	log    *zap.SugaredLogger
	router *mux.Router
	hub    *Hub

	mu       sync.RWMutex
	snapshot sim.Snapshot
	hasSnap  bool
}

func NewServer(log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		log:    log,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/book", s.handleBook).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Publish stores the snapshot and broadcasts it to connected clients.
// Called from the simulation thread; must stay non-blocking.
func (s *Server) Publish(snap sim.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.hasSnap = true
	s.mu.Unlock()

	if msg, err := json.Marshal(snap); err == nil {
		s.hub.Broadcast(msg)
	}
}

// Start runs the HTTP server; it blocks until the listener fails.
func (s *Server) Start(addr string) error {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler(s.router)

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.log.Infow("api listening", "addr", addr)
	return srv.ListenAndServe()
}

func (s *Server) current() (sim.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnap
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"time": snap.Time,
		"bids": snap.Bids,
		"asks": snap.Asks,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.current()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var _ sim.SnapshotPublisher = (*Server)(nil)
