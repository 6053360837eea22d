package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zmlAEQ/silent-threshold/pkg/bus"
	"github.com/zmlAEQ/silent-threshold/pkg/metrics"
)

func TestAuditor_DrainsBus(t *testing.T) {
	metrics.Reset()
	b := bus.New(8)
	a := NewAuditor(b.Subscribe())
	require.NoError(t, a.Start(context.Background()))

	b.Publish(context.Background(), bus.Event{Kind: bus.KindShare, Session: "x", Party: 3})
	b.Publish(context.Background(), bus.Event{Kind: bus.KindShare, Session: "x", Party: 4, Body: ErrInvalidShare})
	b.Publish(context.Background(), bus.Event{Kind: bus.KindCombine, Session: "x", Party: -1})

	require.Eventually(t, func() bool {
		return strings.Contains(metrics.DumpProm(), `ste_session_events_total{kind="combine"} 1`)
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, metrics.DumpProm(), `ste_session_events_total{kind="share"} 2`)
	require.NoError(t, a.Stop(context.Background()))
}

func TestBus_NilAndBackpressure(t *testing.T) {
	var nilBus *bus.Bus
	nilBus.Publish(context.Background(), bus.Event{Kind: bus.KindDone})

	b := bus.New(1)
	b.Publish(context.Background(), bus.Event{Kind: bus.KindShare})
	b.Publish(context.Background(), bus.Event{Kind: bus.KindDone})
	sub := b.Subscribe()
	require.Equal(t, bus.KindShare, (<-sub).Kind)
	require.Len(t, sub, 0)
}
