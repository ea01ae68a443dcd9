// Package performance times the per-frame rebuild passes and produces
// count/min/max/avg reports for the stats endpoint.
package performance

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// Canonical pass names recorded by the engine.
const (
	PassZoneGrid  = "rebuild.zonegrid"
	PassLots      = "rebuild.lots"
	PassPlacement = "rebuild.placement"
	PassMesh      = "rebuild.mesh"
	PassSnapshot  = "frame.snapshot"
)

// Profiler accumulates timing metrics per named pass.
type Profiler struct {
	mu        sync.RWMutex
	metrics   map[string]*Metric
	enabled   bool
	startTime time.Time
}

// Metric is the accumulated statistics for one pass.
type Metric struct {
	Name      string
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	LastTime  time.Duration
	LastCall  time.Time
}

// Operation is a single in-flight timing, closed by End.
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// NewProfiler creates a profiler; a disabled one records nothing and
// costs almost nothing.
func NewProfiler(enabled bool) *Profiler {
	return &Profiler{
		metrics:   make(map[string]*Metric),
		enabled:   enabled,
		startTime: time.Now(),
	}
}

// Start begins timing a pass. Safe to call on a disabled profiler; the
// returned nil Operation makes End a no-op.
func (p *Profiler) Start(name string) *Operation {
	if !p.IsEnabled() {
		return nil
	}
	return &Operation{profiler: p, name: name, start: time.Now()}
}

// End completes a timing and records it.
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.Record(o.name, time.Since(o.start))
}

// Record adds one measured duration for a pass.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}

	m, ok := p.metrics[name]
	if !ok {
		m = &Metric{Name: name, MinTime: duration, MaxTime: duration}
		p.metrics[name] = m
	}
	m.Count++
	m.TotalTime += duration
	m.LastTime = duration
	m.LastCall = time.Now()
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// AverageTime returns the mean duration for a metric.
func (m *Metric) AverageTime() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// GetMetric returns a copy of one pass's statistics, nil if unrecorded.
func (p *Profiler) GetMetric(name string) *Metric {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.metrics[name]
	if !ok {
		return nil
	}
	copied := *m
	return &copied
}

// GetMetrics returns a copy of every recorded metric.
func (p *Profiler) GetMetrics() map[string]*Metric {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*Metric, len(p.metrics))
	for name, m := range p.metrics {
		copied := *m
		out[name] = &copied
	}
	return out
}

// Reset clears all metrics.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = make(map[string]*Metric)
	p.startTime = time.Now()
}

// Report renders a human-readable table of all passes.
func (p *Profiler) Report() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.metrics) == 0 {
		return "No pass timings recorded"
	}

	report := fmt.Sprintf("\n=== Pass Timing Report (since %s) ===\n", p.startTime.Format(time.RFC3339))
	report += fmt.Sprintf("%-24s %8s %12s %12s %12s %12s\n", "Pass", "Count", "Avg", "Min", "Max", "Last")
	for _, m := range p.metrics {
		report += fmt.Sprintf("%-24s %8d %12s %12s %12s %12s\n",
			m.Name, m.Count,
			m.AverageTime().Round(time.Microsecond),
			m.MinTime.Round(time.Microsecond),
			m.MaxTime.Round(time.Microsecond),
			m.LastTime.Round(time.Microsecond))
	}
	report += fmt.Sprintf("\nTotal runtime: %s\n", time.Since(p.startTime).Round(time.Second))
	return report
}

// LogReport logs the report.
func (p *Profiler) LogReport() {
	log.Print(p.Report())
}

// JSONReport renders the metrics for the HTTP stats endpoint.
func (p *Profiler) JSONReport() ([]byte, error) {
	type metricJSON struct {
		Name     string        `json:"name"`
		Count    int64         `json:"count"`
		AvgTime  time.Duration `json:"avg_time_ns"`
		MinTime  time.Duration `json:"min_time_ns"`
		MaxTime  time.Duration `json:"max_time_ns"`
		LastTime time.Duration `json:"last_time_ns"`
		LastCall time.Time     `json:"last_call"`
	}
	type reportJSON struct {
		StartTime time.Time              `json:"start_time"`
		Runtime   time.Duration          `json:"runtime_ns"`
		Metrics   map[string]*metricJSON `json:"metrics"`
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	report := reportJSON{
		StartTime: p.startTime,
		Runtime:   time.Since(p.startTime),
		Metrics:   make(map[string]*metricJSON, len(p.metrics)),
	}
	for name, m := range p.metrics {
		report.Metrics[name] = &metricJSON{
			Name:     m.Name,
			Count:    m.Count,
			AvgTime:  m.AverageTime(),
			MinTime:  m.MinTime,
			MaxTime:  m.MaxTime,
			LastTime: m.LastTime,
			LastCall: m.LastCall,
		}
	}
	return json.MarshalIndent(report, "", "  ")
}

// Enable turns profiling on.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
}

// Disable turns profiling off.
func (p *Profiler) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
}

// IsEnabled reports whether profiling is on.
func (p *Profiler) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}
