package runner

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencySummary describes the response times of the units that got a
// response.
type LatencySummary struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

type latency struct {
	histogram *hdrhistogram.Histogram
}

func newLatency() *latency {
	// 1us to 60s, 3 significant digits
	return &latency{histogram: hdrhistogram.New(1, 60_000_000, 3)}
}

func (l *latency) record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > 60_000_000 {
		us = 60_000_000
	}
	_ = l.histogram.RecordValue(us)
}

func (l *latency) summary() LatencySummary {
	h := l.histogram
	if h.TotalCount() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
	}
}
