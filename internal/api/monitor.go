package api

import (
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"github.com/Laloops/tramagrid/internal/log"
)

// Monitor keeps request latency stats for commands and queries. Setup
// requests are counted apart and kept out of both averages.
type Monitor struct {
	sync.Mutex
	commandDur *movingaverage.MovingAverage
	queryDur   *movingaverage.MovingAverage
	commands   int
	queries    int
	setups     int
	failures   int
	stopCh     chan struct{}
}

// MonitorStats is a snapshot of a Monitor.
type MonitorStats struct {
	Commands     int
	Queries      int
	Setups       int
	Failures     int
	CommandAvgMs float64
	QueryAvgMs   float64
}

// NewMonitor averages over the last window requests of each kind.
func NewMonitor(window int) *Monitor {
	if window < 1 {
		window = 1
	}
	return &Monitor{
		commandDur: movingaverage.New(window),
		queryDur:   movingaverage.New(window),
	}
}

// Observe records one finished request.
func (m *Monitor) Observe(kind RouteKind, dur time.Duration, err error) {
	m.Lock()
	defer m.Unlock()

	ms := float64(dur/time.Microsecond) / 1000.0
	switch kind {
	case KindCommand:
		m.commands++
		m.commandDur.Add(ms)
	case KindSetup:
		m.setups++
	default:
		m.queries++
		m.queryDur.Add(ms)
	}
	if err != nil {
		m.failures++
	}
}

// Stats returns the current counters and averages.
func (m *Monitor) Stats() MonitorStats {
	m.Lock()
	defer m.Unlock()

	return MonitorStats{
		Commands:     m.commands,
		Queries:      m.queries,
		Setups:       m.setups,
		Failures:     m.failures,
		CommandAvgMs: m.commandDur.Avg(),
		QueryAvgMs:   m.queryDur.Avg(),
	}
}

// Start logs a report every period until Stop.
func (m *Monitor) Start(period time.Duration) {
	m.Lock()
	defer m.Unlock()

	if m.stopCh != nil || period <= 0 {
		return
	}
	m.stopCh = make(chan struct{})
	go m.worker(period, m.stopCh)
}

// Stop stops the report worker.
func (m *Monitor) Stop() {
	m.Lock()
	defer m.Unlock()

	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	m.stopCh = nil
}

func (m *Monitor) worker(period time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s := m.Stats()
			log.Info(log.CatTransport, "monitor",
				"commands", s.Commands,
				"queries", s.Queries,
				"setups", s.Setups,
				"failures", s.Failures,
				"command_avg_ms", s.CommandAvgMs,
				"query_avg_ms", s.QueryAvgMs)
		}
	}
}
