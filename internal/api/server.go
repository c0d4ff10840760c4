package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/feed"
	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Source is the read side of the live feed
type Source interface {
	Snapshot() []byte
	Stats() feed.Stats
	Subscribe() chan []byte
	Unsubscribe(ch chan []byte)
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	source   Source
	backend  string
	upgrader websocket.Upgrader
}

// NewServer creates a new API server over source. backend is reported by
// the health endpoint.
func NewServer(source Source, backend string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		source:  source,
		backend: backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tool; panels may be served from file://
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/groups", s.handleGetGroups).Methods("GET")
	api.HandleFunc("/groups/stream", s.handleGroupStream)
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("API server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.source.Snapshot())
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"backend": s.backend,
	})
}

func (s *Server) handleGroupStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Subscribe first so no mutation falls between snapshot and stream
	updates := s.source.Subscribe()
	defer s.source.Unsubscribe(updates)

	// The client never sends; reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, s.source.Snapshot()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}
