// Package session gathers the decryption shares for one ciphertext and
// combines them once enough of them verify.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"

	"github.com/zmlAEQ/silent-threshold/internal/silent/ste"
	"github.com/zmlAEQ/silent-threshold/pkg/bus"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
	"github.com/zmlAEQ/silent-threshold/pkg/trace"
)

type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseGather  Phase = "gather"
	PhaseCombine Phase = "combine"
	PhaseDone    Phase = "done"
)

var (
	ErrInvalidShare = errors.New("session: share failed verification")
	ErrNotReady     = errors.New("session: not enough verified shares")
	ErrClosed       = errors.New("session: closed")
	ErrTimeout      = errors.New("session: gather timed out")
)

// Ciphertext is the public part of an encryption that the session decrypts.
type Ciphertext struct {
	GammaG2 bls12381.G2Affine
	SA1     [2]bls12381.G1Affine
	SA2     [6]bls12381.G2Affine
	T       int
}

type Config struct {
	ID            string        // used in logs and bus events
	GatherTimeout time.Duration // from the first share; 0 means 30s
	Bus           *bus.Bus      // optional
}

func defaultConfig(c Config) Config {
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 30 * time.Second
	}
	return c
}

// Manager is the state machine of one decryption:
// init → gather (first share) → combine (more than T verified) → done.
// A gather that outlives GatherTimeout ends in done with TimedOut set.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	c         *ste.Committee
	ak        *ste.AggregateKey
	ct        Ciphertext
	phase     Phase
	startedAt time.Time
	parts     []bls12381.G2Affine
	selector  []bool
	verified  int
	rejected  int
	timedOut  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager checks that ak belongs to c and that ct.T is a usable threshold.
func NewManager(cfg Config, c *ste.Committee, ak *ste.AggregateKey, ct Ciphertext) (*Manager, error) {
	n := c.N()
	if ak.N != n {
		return nil, fmt.Errorf("%w: aggregate key for %d parties, committee of %d", ste.ErrDimension, ak.N, n)
	}
	if err := ste.CheckThreshold(ct.T, n); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      defaultConfig(cfg),
		c:        c,
		ak:       ak,
		ct:       ct,
		phase:    PhaseInit,
		parts:    make([]bls12381.G2Affine, n),
		selector: make([]bool, n),
	}
	// The dummy party's secret is 1, so its share is γ itself.
	m.parts[0] = ct.GammaG2
	m.selector[0] = true
	return m, nil
}

// Start arms the gather watchdog.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.startedAt = time.Now()
	m.mu.Unlock()

	go m.watchdog()
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
}

func (m *Manager) watchdog() {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			m.mu.Lock()
			m.expireLocked(m.ctx)
			m.mu.Unlock()
		}
	}
}

// expireLocked ends a gather that has outlived GatherTimeout and reports
// whether the session is timed out.
func (m *Manager) expireLocked(ctx context.Context) bool {
	if m.timedOut {
		return true
	}
	if m.phase != PhaseGather || time.Since(m.startedAt) < m.cfg.GatherTimeout {
		return false
	}
	ms := time.Since(m.startedAt).Milliseconds()
	m.timedOut = true
	m.phase = PhaseDone
	metrics.Inc("ste_session_total", map[string]string{"result": "timeout"})
	metrics.ObserveSummary("ste_round_ms", map[string]string{"round": string(PhaseGather)}, float64(ms))
	logger.ErrorJ("ste_session", map[string]any{"event": "timeout", "session": m.cfg.ID, "verified": m.verified, "t": m.ct.T, "latency_ms": ms})
	m.publish(ctx, bus.Event{Kind: bus.KindTimeout, Session: m.cfg.ID, Party: -1})
	return true
}

// OnShare verifies and records party's share. It reports true exactly once:
// on the share that moves the session to combine. Repeated shares from a party
// are ignored. Party 0 is the dummy and is filled in by the session. A gather
// past GatherTimeout fails with ErrTimeout whether or not the watchdog has
// fired yet.
func (m *Manager) OnShare(ctx context.Context, party int, share bls12381.G2Affine) (bool, error) {
	n := m.c.N()
	if party < 1 || party >= n {
		return false, fmt.Errorf("%w: share from party %d of %d", ste.ErrDimension, party, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireLocked(ctx) {
		return false, fmt.Errorf("%w: %d verified, need more than %d", ErrTimeout, m.verified, m.ct.T)
	}
	if m.phase == PhaseDone {
		return false, ErrClosed
	}
	if m.phase == PhaseInit {
		m.phase = PhaseGather
		m.startedAt = time.Now()
		metrics.ObserveSummary("ste_round_ms", map[string]string{"round": string(PhaseInit)}, 0)
		logger.InfoJ("ste_session", map[string]any{"event": "phase", "phase": string(m.phase), "session": m.cfg.ID})
	}
	if m.selector[party] {
		return false, nil
	}
	if !ste.PartVerify(m.ct.GammaG2, &m.ak.PK[party], m.c.G1(), share) {
		m.rejected++
		metrics.Inc("ste_shares_total", map[string]string{"result": "invalid"})
		logger.WarnJ("ste_session", map[string]any{"event": "share", "result": "invalid", "session": m.cfg.ID, "party_id": party})
		m.publish(ctx, bus.Event{Kind: bus.KindShare, Session: m.cfg.ID, Party: party, Body: ErrInvalidShare})
		return false, fmt.Errorf("%w: party %d", ErrInvalidShare, party)
	}
	m.parts[party] = share
	m.selector[party] = true
	m.verified++
	metrics.Inc("ste_shares_total", map[string]string{"result": "ok"})
	m.publish(ctx, bus.Event{Kind: bus.KindShare, Session: m.cfg.ID, Party: party})

	if m.verified > m.ct.T && m.phase == PhaseGather {
		m.phase = PhaseCombine
		metrics.ObserveSummary("ste_round_ms", map[string]string{"round": string(PhaseGather)}, float64(time.Since(m.startedAt).Milliseconds()))
		logger.InfoJ("ste_session", map[string]any{"event": "phase", "phase": string(m.phase), "session": m.cfg.ID, "verified": m.verified})
		m.publish(ctx, bus.Event{Kind: bus.KindCombine, Session: m.cfg.ID, Party: -1})
		return true, nil
	}
	return false, nil
}

// Finalize runs AggDec over the verified shares and ends the session. It
// returns ErrNotReady before the session reached combine.
func (m *Manager) Finalize(ctx context.Context) (bls12381.GT, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var key bls12381.GT
	if m.expireLocked(ctx) {
		return key, fmt.Errorf("%w: %d verified, need more than %d", ErrTimeout, m.verified, m.ct.T)
	}
	switch m.phase {
	case PhaseDone:
		return key, ErrClosed
	case PhaseCombine:
	default:
		return key, fmt.Errorf("%w: %d verified, need more than %d", ErrNotReady, m.verified, m.ct.T)
	}

	key, err := ste.AggDec(ctx, m.parts, m.ct.SA1, m.ct.SA2, m.ct.T, m.selector, m.ak, m.c)
	ms := time.Since(m.startedAt).Milliseconds()
	m.phase = PhaseDone
	if err != nil {
		metrics.Inc("ste_session_total", map[string]string{"result": "error"})
		logger.ErrorJ("ste_session", map[string]any{"event": "finish", "result": "error", "session": m.cfg.ID, "err": err.Error(), "latency_ms": ms})
		m.publish(ctx, bus.Event{Kind: bus.KindDone, Session: m.cfg.ID, Party: -1, Body: err})
		return key, err
	}
	metrics.ObserveSummary("ste_round_ms", map[string]string{"round": string(PhaseCombine)}, float64(ms))
	metrics.Inc("ste_session_total", map[string]string{"result": "ok"})
	logger.InfoJ("ste_session", map[string]any{"event": "finish", "result": "ok", "session": m.cfg.ID, "latency_ms": ms})
	m.publish(ctx, bus.Event{Kind: bus.KindDone, Session: m.cfg.ID, Party: -1})
	return key, nil
}

func (m *Manager) publish(ctx context.Context, ev bus.Event) {
	ev.TraceID, _ = trace.FromContext(ctx)
	m.cfg.Bus.Publish(ctx, ev)
}

type Status struct {
	Phase    Phase
	TimedOut bool
	Verified int
	Rejected int
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Phase: m.phase, TimedOut: m.timedOut, Verified: m.verified, Rejected: m.rejected}
}
