package lendingd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"lendledger/core/state"
	"lendledger/crypto"
	"lendledger/native/lending"
	"lendledger/observability/metrics"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// Server exposes the lending engine over HTTP. Engine operations run under a
// single mutex: the engine serialises logical actions, and successful actions
// are committed to the backing store before the response is written.
type Server struct {
	mu      sync.Mutex
	engine  *lending.Engine
	manager *state.Manager
	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *metrics.LendingMetrics
}

// NewServer wires the HTTP surface to an engine and its state manager. The
// engine's events are routed into the service logger and the prometheus
// counters via a Recorder.
func NewServer(engine *lending.Engine, manager *state.Manager, logger *slog.Logger, limiter *rate.Limiter) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	engine.SetEmitter(NewRecorder(logger))
	return &Server{
		engine:  engine,
		manager: manager,
		logger:  logger,
		limiter: limiter,
		metrics: metrics.Lending(),
	}
}

// Router builds the chi router with all service routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/market/init", s.initializeMarket)
		r.Get("/market", s.getMarket)
		r.Post("/market/pause", s.pause)
		r.Post("/market/unpause", s.unpause)
		r.Post("/market/withdraw-only", s.withdrawOnly)
		r.Post("/market/authority", s.updateAuthority)
		r.Post("/market/fund", s.fundAccount)

		r.Post("/pools", s.addPool)
		r.Get("/pools/{poolID}", s.getPool)
		r.Put("/pools/{poolID}/params", s.updatePool)
		r.Post("/pools/{poolID}/collect-fees", s.collectFees)

		r.Post("/positions", s.createPosition)
		r.Get("/positions/{poolID}/{address}", s.getPosition)
		r.Get("/positions/{poolID}/{address}/limits", s.getLimits)

		r.Post("/deposit", s.deposit)
		r.Post("/withdraw", s.withdraw)
		r.Post("/borrow", s.borrow)
		r.Post("/repay", s.repay)
		r.Post("/liquidate", s.liquidate)
		r.Post("/batch", s.executeBatch)

		r.Post("/delegations/approve", s.approveDelegation)
		r.Post("/delegations/revoke", s.revokeDelegation)
		r.Post("/delegations/borrow", s.borrowDelegated)

		r.Get("/accounts/{address}", s.getAccount)
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) decode(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, requestBodyLimit))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.logger.Warn("request failed",
		"path", r.URL.Path,
		"status", status,
		"error", message,
		"requestId", w.Header().Get("X-Request-Id"),
	)
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, statusForError(err), err.Error())
}

// execute serialises a mutating engine action and commits the staged writes
// when it succeeds. The engine's own snapshot handling guarantees a failed
// action leaves no staged residue.
func (s *Server) execute(operation string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start).Seconds())
	if err != nil {
		return err
	}
	return s.manager.Commit()
}

func parseAddress(value string) (crypto.Address, error) {
	return crypto.DecodeAddress(value)
}

type poolParamsPayload struct {
	LoanToValueRatioBps     uint64 `json:"loanToValueRatioBps"`
	LiquidationThresholdBps uint64 `json:"liquidationThresholdBps"`
	BaseRateBps             uint64 `json:"baseRateBps"`
	OptimalUtilizationBps   uint64 `json:"optimalUtilizationBps"`
	Slope1Bps               uint64 `json:"slope1Bps"`
	Slope2Bps               uint64 `json:"slope2Bps"`
	ProtocolFeeBps          uint64 `json:"protocolFeeBps"`
	FlashLoanFeeBps         uint64 `json:"flashLoanFeeBps"`
	FlashLoansEnabled       bool   `json:"flashLoansEnabled"`
}

func (p poolParamsPayload) params() lending.PoolParams {
	return lending.PoolParams{
		LoanToValueRatioBps:     p.LoanToValueRatioBps,
		LiquidationThresholdBps: p.LiquidationThresholdBps,
		BaseRateBps:             p.BaseRateBps,
		OptimalUtilizationBps:   p.OptimalUtilizationBps,
		Slope1Bps:               p.Slope1Bps,
		Slope2Bps:               p.Slope2Bps,
		ProtocolFeeBps:          p.ProtocolFeeBps,
		FlashLoanFeeBps:         p.FlashLoanFeeBps,
		FlashLoansEnabled:       p.FlashLoansEnabled,
	}
}
