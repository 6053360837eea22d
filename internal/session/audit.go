package session

import (
	"context"
	"sync"
	"time"

	"github.com/zmlAEQ/silent-threshold/pkg/bus"
	"github.com/zmlAEQ/silent-threshold/pkg/lifecycle"
	"github.com/zmlAEQ/silent-threshold/pkg/logger"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
)

// Auditor drains session events from the bus into the log and the
// ste_session_events_total counter.
type Auditor struct {
	sub  bus.Subscriber
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewAuditor(sub bus.Subscriber) *Auditor { return &Auditor{sub: sub} }

func (a *Auditor) Name() string { return "session-audit" }

func (a *Auditor) Start(ctx context.Context) error {
	begin := time.Now()
	ctx, a.stop = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.run(ctx)
	dur := time.Since(begin).Milliseconds()
	logger.InfoJ("service_op", map[string]any{"service": a.Name(), "op": "start", "result": "ok", "latency_ms": dur})
	return nil
}

func (a *Auditor) Stop(context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	a.wg.Wait()
	logger.InfoJ("service_op", map[string]any{"service": a.Name(), "op": "stop", "result": "ok"})
	return nil
}

func (a *Auditor) run(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.sub:
			a.record(ev)
		}
	}
}

func (a *Auditor) record(ev bus.Event) {
	metrics.Inc("ste_session_events_total", map[string]string{"kind": string(ev.Kind)})
	fields := map[string]any{"kind": string(ev.Kind), "session": ev.Session, "trace_id": ev.TraceID}
	if ev.Party >= 0 {
		fields["party_id"] = ev.Party
	}
	if err, ok := ev.Body.(error); ok {
		fields["err"] = err.Error()
		logger.WarnJ("ste_session_event", fields)
		return
	}
	logger.InfoJ("ste_session_event", fields)
}

var _ lifecycle.Service = (*Auditor)(nil)
