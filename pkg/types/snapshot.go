package types

import (
	"runtime"
	"sync"
	"time"
)

// pauseSlice wraps a slice for use with sync.Pool to avoid allocation on Put.
type pauseSlice struct {
	data []uint64
}

// pauseSlicePool provides reusable pause ring storage for the per-GC hook.
// The runtime.MemStats PauseNs/PauseEnd arrays are always 256 elements.
var pauseSlicePool = sync.Pool{
	New: func() any {
		return &pauseSlice{data: make([]uint64, 256)}
	},
}

// GCSnapshot is the subset of runtime.MemStats the collector needs to turn
// the runtime's pause ring into begin/end notifications.
type GCSnapshot struct {
	NumGC         uint32    `json:"num_gc"`
	PauseTotalNs  uint64    `json:"pause_total_ns"`
	PauseNs       []uint64  `json:"pause_ns"`
	PauseEnd      []uint64  `json:"pause_end"`
	LastGC        time.Time `json:"last_gc"`
	HeapAlloc     uint64    `json:"heap_alloc"`
	NextGC        uint64    `json:"next_gc"`
	GCCPUFraction float64   `json:"gc_cpu_fraction"`
	Timestamp     time.Time `json:"timestamp"`

	pooled          bool
	pauseNsWrapper  *pauseSlice
	pauseEndWrapper *pauseSlice
}

// NewGCSnapshot reads runtime.MemStats into a snapshot that owns its slices.
func NewGCSnapshot() *GCSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pauseNs := make([]uint64, len(m.PauseNs))
	copy(pauseNs, m.PauseNs[:])

	pauseEnd := make([]uint64, len(m.PauseEnd))
	copy(pauseEnd, m.PauseEnd[:])

	return fromMemStats(&m, pauseNs, pauseEnd)
}

// NewGCSnapshotPooled reads runtime.MemStats using pooled pause slices.
// IMPORTANT: Call Release() when done to return slices to the pool.
func NewGCSnapshotPooled() *GCSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pauseNsWrapper := pauseSlicePool.Get().(*pauseSlice)
	pauseEndWrapper := pauseSlicePool.Get().(*pauseSlice)

	copy(pauseNsWrapper.data, m.PauseNs[:])
	copy(pauseEndWrapper.data, m.PauseEnd[:])

	s := fromMemStats(&m, pauseNsWrapper.data, pauseEndWrapper.data)
	s.pooled = true
	s.pauseNsWrapper = pauseNsWrapper
	s.pauseEndWrapper = pauseEndWrapper
	return s
}

func fromMemStats(m *runtime.MemStats, pauseNs, pauseEnd []uint64) *GCSnapshot {
	return &GCSnapshot{
		NumGC:         m.NumGC,
		PauseTotalNs:  m.PauseTotalNs,
		PauseNs:       pauseNs,
		PauseEnd:      pauseEnd,
		LastGC:        time.Unix(0, int64(m.LastGC)),
		HeapAlloc:     m.HeapAlloc,
		NextGC:        m.NextGC,
		GCCPUFraction: m.GCCPUFraction,
		Timestamp:     time.Now(),
	}
}

// Release returns pooled slices back to the pool.
// No-op if the snapshot was not created with NewGCSnapshotPooled.
func (s *GCSnapshot) Release() {
	if !s.pooled {
		return
	}

	if s.pauseNsWrapper != nil {
		clear(s.pauseNsWrapper.data)
		pauseSlicePool.Put(s.pauseNsWrapper)
		s.pauseNsWrapper = nil
		s.PauseNs = nil
	}

	if s.pauseEndWrapper != nil {
		clear(s.pauseEndWrapper.data)
		pauseSlicePool.Put(s.pauseEndWrapper)
		s.pauseEndWrapper = nil
		s.PauseEnd = nil
	}

	s.pooled = false
}

// Pauses returns the events for collections numbered (since, s.NumGC] that
// are still present in the pause ring, oldest first. truncated reports that
// some collections had already been overwritten.
func (s *GCSnapshot) Pauses(since uint32, dst []GCEvent) (events []GCEvent, truncated bool) {
	events = dst[:0]
	if s.NumGC <= since || len(s.PauseNs) == 0 {
		return events, false
	}

	ringLen := uint32(len(s.PauseNs))
	first := since + 1
	if s.NumGC-since > ringLen {
		first = s.NumGC - ringLen + 1
		truncated = true
	}

	for seq := first; seq <= s.NumGC; seq++ {
		idx := (seq - 1) % ringLen
		pause := time.Duration(s.PauseNs[idx])
		end := time.Unix(0, int64(s.PauseEnd[idx]))
		events = append(events, GCEvent{
			Sequence:  seq,
			StartTime: end.Add(-pause),
			EndTime:   end,
			Duration:  pause,
		})
	}
	return events, truncated
}
