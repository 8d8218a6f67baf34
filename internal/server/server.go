// Package server exposes the operational HTTP surface: health, metrics, and
// read-only views over streams, orders, positions, and recent events.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ingest"
	"main/internal/model"
	"main/internal/order"
	"main/internal/state"
)

type Config struct {
	Addr       string
	Bus        *bus.Bus
	Supervisor *ingest.Supervisor
	Manager    *order.Manager
	Book       *state.Book
}

type Server struct {
	conf Config
	http *http.Server
}

func New(conf Config) *Server {
	s := &Server{conf: conf}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/streams", s.handleStreams).Methods(http.MethodGet)
	router.HandleFunc("/api/orders", s.handleOrders).Methods(http.MethodGet)
	router.HandleFunc("/api/positions", s.handlePositions).Methods(http.MethodGet)
	router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         conf.Addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	logs.Infof("status server listening on %s", s.conf.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStreams(w http.ResponseWriter, _ *http.Request) {
	type streamView struct {
		Stream string `json:"stream"`
		State  string `json:"state"`
	}
	views := make([]streamView, 0)
	if s.conf.Supervisor != nil {
		for key, st := range s.conf.Supervisor.Streams() {
			views = append(views, streamView{Stream: key.Name(), State: st.String()})
		}
	}
	writeJSON(w, views)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders := []model.Order{}
	if s.conf.Manager != nil {
		orders = s.conf.Manager.ActiveOrders(r.URL.Query().Get("symbol"))
	}
	writeJSON(w, orders)
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	type view struct {
		Open   []model.Position `json:"open"`
		Closed []model.Position `json:"closed"`
		Equity string           `json:"equity"`
	}
	v := view{Open: []model.Position{}, Closed: []model.Position{}}
	if s.conf.Book != nil {
		v.Open = s.conf.Book.OpenPositions()
		v.Closed = s.conf.Book.ClosedPositions()
		v.Equity = s.conf.Book.Equity().String()
	}
	writeJSON(w, v)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	type eventView struct {
		Topic string    `json:"topic"`
		At    time.Time `json:"at"`
		Event bus.Event `json:"event"`
	}
	views := make([]eventView, 0, limit)
	if s.conf.Bus != nil {
		for _, e := range s.conf.Bus.HistoryAll(limit) {
			views = append(views, eventView{Topic: e.Topic().String(), At: e.OccurredAt(), Event: e})
		}
	}
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Errorf("encode response: %v", err)
	}
}
