package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracker metrics
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timetrak_ticks_total",
			Help: "Total tracker ticks executed",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "timetrak_tick_duration_seconds",
			Help:    "Duration of one full tracker tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SamplesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrak_samples_recorded_total",
			Help: "Activity samples successfully persisted",
		},
		[]string{"scope"},
	)

	TrackedIdentities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timetrak_tracked_identities",
			Help: "Eligible identities observed in the last tick",
		},
		[]string{"scope"},
	)

	PresenceMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrak_presence_misses_total",
			Help: "Identities absent from the presence source at tick time",
		},
		[]string{"scope"},
	)

	// Storage metrics
	SessionsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrak_sessions_finalized_total",
			Help: "Sessions moved from ongoing to finalized",
		},
		[]string{"scope"},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetrak_store_errors_total",
			Help: "Storage errors while persisting activity samples",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		SamplesRecorded,
		TrackedIdentities,
		PresenceMisses,
		SessionsFinalized,
		StoreErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
