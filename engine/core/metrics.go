package core

import "sync"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling average over the last AVG_COUNT samples of an
// operation duration, plus how many samples were ever recorded.
type Metrics struct {
	mu         sync.Mutex
	avgCounter uint8
	filled     uint8
	msTimes    [AVG_COUNT]float64
	msAvg      float64
	lastMS     float64
	count      uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one sample, elapsed is in seconds.
func (m *Metrics) Record(elapsed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := elapsed * 1000.0
	m.lastMS = ms
	m.msTimes[m.avgCounter] = ms
	if m.filled < AVG_COUNT {
		m.filled++
	}
	m.avgCounter = (m.avgCounter + 1) % AVG_COUNT

	sum := 0.0
	for i := uint8(0); i < m.filled; i++ {
		sum += m.msTimes[i]
	}
	m.msAvg = sum / float64(m.filled)
	m.count++
}

// Count returns how many samples were recorded.
func (m *Metrics) Count() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// AverageMS returns the rolling average in milliseconds.
func (m *Metrics) AverageMS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msAvg
}

// LastMS returns the most recent sample in milliseconds.
func (m *Metrics) LastMS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMS
}
