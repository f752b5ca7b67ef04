package job

import "sync/atomic"

// Diagnostics accumulates lightweight counters over a Job Context's
// lifetime (SPEC_FULL.md's "Supplemented features": diagnostic collector,
// grounded on imageflow_core's codecs/diagnostic_collector.rs), adapting
// the teacher's atomic processedCount/errorCount pair on core.Processor
// to the wider counter set a Job Context needs.
type Diagnostics struct {
	DecodeCount  int64
	EncodeCount  int64
	NodesRun     int64
	PeakBitmaps  int64
}

func (d *Diagnostics) incr(counter *int64) { atomic.AddInt64(counter, 1) }

// recordPeakBitmaps updates PeakBitmaps if n exceeds the current peak.
func (d *Diagnostics) recordPeakBitmaps(n int) {
	for {
		cur := atomic.LoadInt64(&d.PeakBitmaps)
		if int64(n) <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&d.PeakBitmaps, cur, int64(n)) {
			return
		}
	}
}

// Snapshot is an immutable point-in-time copy of Diagnostics, mirroring
// hooks.MetricsSnapshot's copy-out-of-atomics pattern.
type Snapshot struct {
	DecodeCount int64
	EncodeCount int64
	NodesRun    int64
	PeakBitmaps int64
}

// Snapshot returns a copy of the current counters.
func (d *Diagnostics) Snapshot() Snapshot {
	return Snapshot{
		DecodeCount: atomic.LoadInt64(&d.DecodeCount),
		EncodeCount: atomic.LoadInt64(&d.EncodeCount),
		NodesRun:    atomic.LoadInt64(&d.NodesRun),
		PeakBitmaps: atomic.LoadInt64(&d.PeakBitmaps),
	}
}
