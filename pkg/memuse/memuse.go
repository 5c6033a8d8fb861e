// Package memuse tracks the process's memory footprint over time. A
// long-lived frame that decodes large photos leaks slowly if buffers
// are retained; the monitor makes that visible in the logs.
package memuse

import (
	"runtime"
	"time"

	"k8s.io/klog/v2"
)

// Stats is one memory sample, in KB.
type Stats struct {
	CurrentKB  uint64
	ReservedKB uint64
	PeakKB     uint64
	GrowthKB   uint64
}

// Monitor samples Go heap usage and tracks peak and growth against
// the baseline taken at construction. Not safe for concurrent use.
type Monitor struct {
	initialKB uint64
	peakKB    uint64
	lastLog   time.Time
}

// NewMonitor records the current usage as the baseline.
func NewMonitor() *Monitor {
	kb := sampleKB()
	klog.Infof("memory monitor initialized, initial usage: %s", FormatKB(kb))
	return &Monitor{initialKB: kb, peakKB: kb, lastLog: time.Now()}
}

// Check takes a fresh sample and updates the peak.
func (m *Monitor) Check() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	current := ms.HeapAlloc / 1024
	if current > m.peakKB {
		m.peakKB = current
	}

	s := Stats{
		CurrentKB:  current,
		ReservedKB: ms.Sys / 1024,
		PeakKB:     m.peakKB,
		GrowthKB:   saturatingSub(current, m.initialKB),
	}

	klog.V(1).Infof("memory usage: %s (reserved: %s, peak: %s, growth: +%s)",
		FormatKB(s.CurrentKB), FormatKB(s.ReservedKB), FormatKB(s.PeakKB), FormatKB(s.GrowthKB))
	return s
}

// MaybeLog samples and logs at most once per interval.
func (m *Monitor) MaybeLog(interval time.Duration) {
	if time.Since(m.lastLog) < interval {
		return
	}
	s := m.Check()
	klog.Infof("memory check: current: %s, peak: %s, growth: +%s",
		FormatKB(s.CurrentKB), FormatKB(s.PeakKB), FormatKB(s.GrowthKB))
	m.lastLog = time.Now()
}

func sampleKB() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc / 1024
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
