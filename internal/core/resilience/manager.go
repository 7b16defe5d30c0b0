package resilience

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Manager hands out named breakers so callers do not need to thread
// breaker instances through unrelated code. One breaker guards one
// logical dependency.
type Manager struct {
	logger *logging.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates an empty breaker manager.
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker registered under name, creating it with cfg
// on first use. The configuration of an existing breaker is not
// changed.
func (m *Manager) Get(name string, cfg BreakerConfig) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, ok := m.breakers[name]; ok {
		return breaker
	}

	breaker := NewBreaker(name, cfg, m.logger)
	m.breakers[name] = breaker
	if m.logger != nil {
		m.logger.Info("Created circuit breaker", zap.String("breaker", name))
	}
	return breaker
}

// Stats returns snapshots for every registered breaker.
func (m *Manager) Stats() []BreakerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]BreakerStats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	return stats
}

// States returns the current state of every registered breaker by name.
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]State, len(m.breakers))
	for name, breaker := range m.breakers {
		states[name] = breaker.State()
	}
	return states
}

// ResetAll forces every registered breaker back to Closed.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		breakers = append(breakers, breaker)
	}
	m.mu.Unlock()

	for _, breaker := range breakers {
		breaker.Reset()
	}
}
