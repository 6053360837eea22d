package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSvc struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeSvc) Name() string { return f.name }
func (f *fakeSvc) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start:"+f.name)
	return nil
}
func (f *fakeSvc) Stop(context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

func TestStartStop_Order(t *testing.T) {
	var log []string
	m := New()
	m.Add(&fakeSvc{name: "a", log: &log})
	m.Add(&fakeSvc{name: "b", log: &log})
	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StopAll(context.Background()))
	require.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)
}

func TestStartAll_RollsBackOnFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := New()
	m.Add(&fakeSvc{name: "a", log: &log})
	m.Add(&fakeSvc{name: "b", startErr: boom, log: &log})
	err := m.StartAll(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"start:a", "stop:a"}, log)
	require.NoError(t, m.StopAll(context.Background()))
}
