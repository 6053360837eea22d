package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zmlAEQ/silent-threshold/pkg/logger"
)

// Service is a long-running component owned by a Manager.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager starts services in registration order and stops them in reverse.
type Manager struct {
	mu       sync.Mutex
	services []Service
	started  []Service
}

func New() *Manager { return &Manager{} }

func (m *Manager) Add(s Service) {
	m.mu.Lock()
	m.services = append(m.services, s)
	m.mu.Unlock()
}

// StartAll starts every service. If one fails, the ones already started are
// stopped again before the error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.services {
		if err := s.Start(ctx); err != nil {
			logger.ErrorJ("lifecycle", map[string]any{"op": "start", "service": s.Name(), "result": "error", "err": err.Error()})
			_ = m.stopLocked(context.Background())
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		logger.InfoJ("lifecycle", map[string]any{"op": "start", "service": s.Name(), "result": "ok"})
		m.started = append(m.started, s)
	}
	return nil
}

// StopAll stops started services in reverse order and joins their errors.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			logger.ErrorJ("lifecycle", map[string]any{"op": "stop", "service": s.Name(), "result": "error", "err": err.Error()})
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Name(), err))
			continue
		}
		logger.InfoJ("lifecycle", map[string]any{"op": "stop", "service": s.Name(), "result": "ok"})
	}
	m.started = nil
	return errors.Join(errs...)
}
