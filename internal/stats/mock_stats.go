package stats

import "github.com/stretchr/testify/mock"

type MockStatsUpdater struct {
	mock.Mock
}

func (m *MockStatsUpdater) Incr(name string) {
	m.Called(name)
}
func (m *MockStatsUpdater) Decr(name string) {
	m.Called(name)
}
func (m *MockStatsUpdater) RegisterMetric(name string) {
	m.Called(name)
}
func (m *MockStatsUpdater) Run() {
	m.Called()
}

// NopStats is a Provider that discards all updates. Handy in tests that do
// not assert on metrics.
type NopStats struct{}

func (NopStats) Incr(string)           {}
func (NopStats) Decr(string)           {}
func (NopStats) RegisterMetric(string) {}
func (NopStats) Run()                  {}
