package bme280

import (
	"sync"

	"github.com/juju/errors"
)

var ErrMockEmpty = errors.New("bme280 mock: no more scripted readings")

type MockReading struct {
	Raw int32
	Err error
}

// Mock replays scripted readings, then Default.
type Mock struct {
	mu       sync.Mutex
	Readings []MockReading
	Default  *MockReading
	reads    int
}

func NewMock(readings ...MockReading) *Mock { return &Mock{Readings: readings} }

func (m *Mock) ReadRawTemperature() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if len(m.Readings) > 0 {
		r := m.Readings[0]
		m.Readings = m.Readings[1:]
		return r.Raw, r.Err
	}
	if m.Default != nil {
		return m.Default.Raw, m.Default.Err
	}
	return 0, ErrMockEmpty
}

func (m *Mock) Compensate(raw int32) float64 { return Compensate(raw) }

func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
