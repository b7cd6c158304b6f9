package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/qubicnet/qgossip/src/node"
)

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	manager     *node.Manager
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// PeersResponse lists the registry by membership.
type PeersResponse struct {
	Connected []string `json:"connected"`
	Active    []string `json:"active"`
	Known     []string `json:"known"`
	Forgotten []string `json:"forgotten"`
}

// ComputorsResponse describes the cached committee.
type ComputorsResponse struct {
	Epoch      uint16   `json:"epoch"`
	Identities []string `json:"identities"`
}

// NewService ...
func NewService(bindAddress string, m *node.Manager, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		manager:     m,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/computors", s.makeHandler(s.GetComputors))
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.manager.Metrics().Registry, promhttp.HandlerOpts{}))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	reg := s.manager.Registry()

	res := PeersResponse{
		Connected: s.manager.Connected(),
		Active:    reg.Active(),
		Known:     reg.Known(),
		Forgotten: reg.Forgotten(),
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetComputors ...
func (s *Service) GetComputors(w http.ResponseWriter, r *http.Request) {
	c := s.manager.Committee().Current()
	if c == nil {
		http.Error(w, "no computors cached", http.StatusNotFound)
		return
	}

	v := s.manager.Validator()
	res := ComputorsResponse{
		Epoch:      c.Epoch,
		Identities: make([]string, len(c.PublicKeys)),
	}
	for i, k := range c.PublicKeys {
		res.Identities[i] = v.Identity(k)
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}
