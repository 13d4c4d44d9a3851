// Package stub is a minimal team dashboard server to point dashload at when
// no real backend is available.
package stub

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the simulated backend behavior.
type Config struct {
	// Latency is added to every dashboard response
	Latency time.Duration

	// ErrorRate is the fraction (0.0 to 1.0) of dashboard requests answered with 500
	ErrorRate float64

	// Seed for the error sampler; 0 seeds from the clock
	Seed int64
}

// Dashboard is the response body.
type Dashboard struct {
	TeamID  int      `json:"teamId"`
	Widgets []Widget `json:"widgets"`
}

// Widget is one dashboard tile.
type Widget struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Value int64  `json:"value"`
}

// Server serves GET /api/team/{teamId}/dashboard and /health.
type Server struct {
	cfg   Config
	mux   *http.ServeMux
	total atomic.Int64

	mu    sync.Mutex
	rng   *rand.Rand
	teams map[int]int64
}

// NewServer creates a stub server.
func NewServer(cfg Config) *Server {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Server{
		cfg:   cfg,
		mux:   http.NewServeMux(),
		rng:   rand.New(rand.NewSource(seed)),
		teams: make(map[int]int64),
	}
	s.mux.HandleFunc("GET /api/team/{teamId}/dashboard", s.dashboard)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	teamID, err := strconv.Atoi(r.PathValue("teamId"))
	if err != nil || teamID < 0 {
		http.Error(w, "invalid team id", http.StatusBadRequest)
		return
	}

	n := s.total.Add(1)
	s.mu.Lock()
	s.teams[teamID]++
	fail := s.cfg.ErrorRate > 0 && s.rng.Float64() < s.cfg.ErrorRate
	s.mu.Unlock()

	if s.cfg.Latency > 0 {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
	}

	if fail {
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Dashboard{
		TeamID: teamID,
		Widgets: []Widget{
			{ID: 1, Title: "open tickets", Value: n % 97},
			{ID: 2, Title: "deploys today", Value: n % 13},
		},
	})
}

// Requests returns the number of dashboard requests received.
func (s *Server) Requests() int64 {
	return s.total.Load()
}

// TeamRequests returns the dashboard request count per team.
func (s *Server) TeamRequests() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.teams))
	for k, v := range s.teams {
		out[k] = v
	}
	return out
}
