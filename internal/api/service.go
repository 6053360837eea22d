// Package api serves the node's HTTP surface. Request and response bodies are
// protobuf messages from internal/wire.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zmlAEQ/silent-threshold/internal/roster"
	"github.com/zmlAEQ/silent-threshold/internal/session"
	"github.com/zmlAEQ/silent-threshold/internal/silent/envelope"
	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/internal/wire"
	"github.com/zmlAEQ/silent-threshold/pkg/bus"
	"github.com/zmlAEQ/silent-threshold/pkg/lifecycle"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
	"github.com/zmlAEQ/silent-threshold/pkg/trace"
)

const (
	contentType  = "application/x-protobuf"
	maxBodyBytes = 8 << 20
	traceHeader  = "X-Trace-Id"
)

var errBadRequest = errors.New("api: bad request")

// Deps are the node components the handlers use. Roster, Validity and Bus may
// be nil: requests then have to carry every public key, is_valid and register
// answer 501, and session events are dropped.
type Deps struct {
	Committee     *ste.Committee
	Deriver       ste.PublicKeyDeriver
	Validity      *ste.ValidityHelper
	Secret        *ste.SecretKey
	PartyID       int
	Roster        *roster.Roster
	Bus           *bus.Bus
	GatherTimeout time.Duration
}

type Service struct {
	addr string
	d    Deps

	mu       sync.Mutex
	srv      *http.Server
	ln       net.Listener
	ownKey   *ste.PublicKey
	sessions uint64
}

func New(addr string, d Deps) *Service { return &Service{addr: addr, d: d} }

func (s *Service) Name() string { return "api" }

// Addr returns the bound address once started.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/pk", s.route("pk", s.handlePK))
	mux.Handle("/v1/encrypt", s.route("encrypt", s.handleEncrypt))
	mux.Handle("/v1/decrypt_part", s.route("decrypt_part", s.handleDecryptPart))
	mux.Handle("/v1/verify_part", s.route("verify_part", s.handleVerifyPart))
	mux.Handle("/v1/decrypt", s.route("decrypt", s.handleDecrypt))
	mux.Handle("/v1/is_valid", s.route("is_valid", s.handleIsValid))
	mux.Handle("/v1/register", s.route("register", s.handleRegister))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (s *Service) Start(ctx context.Context) error {
	begin := time.Now()
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		logger.ErrorJ("service_op", map[string]any{"service": "api", "op": "start", "result": "error", "err": err.Error()})
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorJ("service_op", map[string]any{"service": "api", "op": "serve", "result": "error", "err": err.Error()})
		}
	}()
	dur := time.Since(begin).Milliseconds()
	logger.InfoJ("service_op", map[string]any{"service": "api", "op": "start", "result": "ok", "addr": ln.Addr().String(), "latency_ms": dur})
	metrics.ObserveSummary("service_op_ms", map[string]string{"service": "api", "op": "start"}, float64(dur))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	begin := time.Now()
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	dur := time.Since(begin).Milliseconds()
	result := "ok"
	if err != nil {
		result = "error"
	}
	logger.InfoJ("service_op", map[string]any{"service": "api", "op": "stop", "result": result, "latency_ms": dur})
	metrics.ObserveSummary("service_op_ms", map[string]string{"service": "api", "op": "stop"}, float64(dur))
	return err
}

type handlerFunc func(ctx context.Context, body []byte) ([]byte, error)

// route wraps h with method and size checks, a trace id, metrics and one log
// line per request.
func (s *Service) route(name string, h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		tid := r.Header.Get(traceHeader)
		if tid == "" {
			tid = trace.NewID()
		}
		ctx := trace.WithTraceID(r.Context(), tid)
		w.Header().Set(traceHeader, tid)

		code, out, err := s.serve(ctx, r, h)
		if err != nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(code)
			_, _ = io.WriteString(w, err.Error())
		} else {
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(code)
			_, _ = w.Write(out)
		}

		ms := float64(time.Since(begin).Milliseconds())
		metrics.Inc("ste_http_requests_total", map[string]string{"route": name, "code": strconv.Itoa(code)})
		metrics.ObserveSummary("ste_op_ms", map[string]string{"op": "http_" + name}, ms)
		fields := map[string]any{"route": name, "code": code, "latency_ms": ms, "trace_id": tid}
		if err != nil {
			fields["err"] = err.Error()
		}
		if code >= http.StatusInternalServerError {
			logger.ErrorJ("http", fields)
			return
		}
		logger.InfoJ("http", fields)
	})
}

func (s *Service) serve(ctx context.Context, r *http.Request, h handlerFunc) (int, []byte, error) {
	if r.Method != http.MethodPost {
		return http.StatusMethodNotAllowed, nil, fmt.Errorf("method %s not allowed", r.Method)
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, nil, err
		}
		return http.StatusBadRequest, nil, err
	}
	out, err := h(ctx, body)
	if err != nil {
		return statusFor(err), nil, err
	}
	return http.StatusOK, out, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, session.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, envelope.ErrOpen),
		errors.Is(err, session.ErrInvalidShare),
		errors.Is(err, errInvalidKey):
		return http.StatusForbidden
	case errors.Is(err, errBadRequest),
		errors.Is(err, wire.ErrEncoding),
		errors.Is(err, ste.ErrDimension),
		errors.Is(err, ste.ErrInvalidThreshold),
		errors.Is(err, ste.ErrThresholdViolation),
		errors.Is(err, session.ErrNotReady),
		errors.Is(err, roster.ErrIncomplete),
		errors.Is(err, roster.ErrNotFound),
		errors.Is(err, envelope.ErrShortCiphertext):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var _ lifecycle.Service = (*Service)(nil)
