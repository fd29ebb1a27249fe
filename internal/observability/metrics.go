package observability

import (
	"sync"
	"time"
)

type EventSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

type Snapshot struct {
	UptimeSec    int64                    `json:"uptime_sec"`
	TotalHandled int64                    `json:"total_handled"`
	TotalErrors  int64                    `json:"total_errors"`
	InFlight     int64                    `json:"in_flight"`
	Published    int64                    `json:"published"`
	Retried      int64                    `json:"retried"`
	DeadLettered int64                    `json:"dead_lettered"`
	EmailsSent   int64                    `json:"emails_sent"`
	Lifecycle    *LifecycleSnapshot       `json:"lifecycle,omitempty"`
	Events       map[string]EventSnapshot `json:"events"`
}

type eventStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics tracks broker and saga activity in process memory.
type Metrics struct {
	mu           sync.Mutex
	start        time.Time
	events       map[string]*eventStats
	published    int64
	retried      int64
	deadLettered int64
	emailsSent   int64
	lifecycle    lifecycleStats
}

// HandleSpan measures one handled event from Start to End.
type HandleSpan struct {
	metrics   *Metrics
	eventType string
	start     time.Time
}

type lifecycleStats struct {
	shutdownAt time.Time
	inflight   int64
}

type LifecycleSnapshot struct {
	ShutdownAt         time.Time `json:"shutdown_at"`
	InFlightAtShutdown int64     `json:"inflight_at_shutdown"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:  time.Now(),
		events: make(map[string]*eventStats),
	}
}

// Start opens a span for one delivered event.
func (m *Metrics) Start(eventType string) *HandleSpan {
	if m == nil {
		return &HandleSpan{}
	}
	m.mu.Lock()
	stats := m.ensureEvent(eventType)
	stats.inFlight++
	m.mu.Unlock()
	return &HandleSpan{
		metrics:   m,
		eventType: eventType,
		start:     time.Now(),
	}
}

func (s *HandleSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.eventType, dur, err != nil)
}

func (m *Metrics) AddPublished() { m.add(func(m *Metrics) { m.published++ }) }

func (m *Metrics) AddRetried() { m.add(func(m *Metrics) { m.retried++ }) }

func (m *Metrics) AddDeadLettered() { m.add(func(m *Metrics) { m.deadLettered++ }) }

func (m *Metrics) AddEmailSent() { m.add(func(m *Metrics) { m.emailsSent++ }) }

func (m *Metrics) add(bump func(*Metrics)) {
	if m == nil {
		return
	}
	m.mu.Lock()
	bump(m)
	m.mu.Unlock()
}

func (m *Metrics) MarkShutdown(inflight int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.lifecycle.shutdownAt = time.Now()
	m.lifecycle.inflight = inflight
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:    int64(time.Since(m.start).Seconds()),
		Published:    m.published,
		Retried:      m.retried,
		DeadLettered: m.deadLettered,
		EmailsSent:   m.emailsSent,
		Events:       make(map[string]EventSnapshot, len(m.events)),
	}

	if !m.lifecycle.shutdownAt.IsZero() {
		snap.Lifecycle = &LifecycleSnapshot{
			ShutdownAt:         m.lifecycle.shutdownAt,
			InFlightAtShutdown: m.lifecycle.inflight,
		}
	}

	for eventType, stats := range m.events {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Events[eventType] = EventSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalHandled += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	return snap
}

func (m *Metrics) ensureEvent(eventType string) *eventStats {
	stats, ok := m.events[eventType]
	if !ok {
		stats = &eventStats{}
		m.events[eventType] = stats
	}
	return stats
}

func (m *Metrics) finish(eventType string, dur time.Duration, failed bool) {
	m.mu.Lock()
	stats := m.ensureEvent(eventType)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
