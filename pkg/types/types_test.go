package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewGCSnapshot(t *testing.T) {
	s := NewGCSnapshot()

	if s == nil {
		t.Fatal("NewGCSnapshot() returned nil")
	}
	if s.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if len(s.PauseNs) != 256 || len(s.PauseEnd) != 256 {
		t.Errorf("pause ring length = %d/%d, want 256", len(s.PauseNs), len(s.PauseEnd))
	}
	if s.pooled {
		t.Error("Standard snapshot should not be pooled")
	}
}

func TestNewGCSnapshotPooled(t *testing.T) {
	s := NewGCSnapshotPooled()

	if s.PauseNs == nil {
		t.Error("PauseNs should not be nil for pooled snapshot")
	}
	if !s.pooled {
		t.Error("Pooled snapshot should have pooled=true")
	}

	s.Release()

	if s.PauseNs != nil || s.PauseEnd != nil {
		t.Error("pause slices should be nil after Release()")
	}
	if s.pooled {
		t.Error("pooled should be false after Release()")
	}

	// Second release should not panic
	s.Release()
}

func TestGCSnapshot_Release_NotPooled(t *testing.T) {
	s := NewGCSnapshot()
	s.Release()

	if s.PauseNs == nil {
		t.Error("PauseNs should survive Release() on a non-pooled snapshot")
	}
}

func ringSnapshot(numGC uint32, base time.Time) *GCSnapshot {
	s := &GCSnapshot{
		NumGC:    numGC,
		PauseNs:  make([]uint64, 256),
		PauseEnd: make([]uint64, 256),
	}
	for seq := uint32(1); seq <= numGC; seq++ {
		idx := (seq - 1) % 256
		s.PauseNs[idx] = uint64(seq) * uint64(time.Millisecond)
		s.PauseEnd[idx] = uint64(base.Add(time.Duration(seq) * time.Second).UnixNano())
	}
	return s
}

func TestGCSnapshot_Pauses(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name          string
		numGC         uint32
		since         uint32
		wantCount     int
		wantFirstSeq  uint32
		wantTruncated bool
	}{
		{"no new collections", 10, 10, 0, 0, false},
		{"three new", 10, 7, 3, 8, false},
		{"from zero", 4, 0, 4, 1, false},
		{"ring overflow", 300, 10, 256, 45, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ringSnapshot(tt.numGC, base)
			events, truncated := s.Pauses(tt.since, make([]GCEvent, 0, 256))

			if len(events) != tt.wantCount {
				t.Fatalf("len(events) = %d, want %d", len(events), tt.wantCount)
			}
			if truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
			if tt.wantCount == 0 {
				return
			}
			first := events[0]
			if first.Sequence != tt.wantFirstSeq {
				t.Errorf("first sequence = %d, want %d", first.Sequence, tt.wantFirstSeq)
			}
			if first.EndTime.Sub(first.StartTime) != first.Duration {
				t.Errorf("start/end do not span duration %v", first.Duration)
			}
			last := events[len(events)-1]
			if last.Sequence != tt.numGC {
				t.Errorf("last sequence = %d, want %d", last.Sequence, tt.numGC)
			}
		})
	}
}

func TestClassification_String(t *testing.T) {
	tests := []struct {
		c    Classification
		want string
	}{
		{Normal, "normal"},
		{Warning, "warning"},
		{Enforcing, "enforcing"},
		{Classification(9), "classification(9)"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestClassification_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		C Classification `json:"c"`
	}{Warning})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `{"c":"warning"}` {
		t.Errorf("got %s", data)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1099511627776, "1.0 TB"},
		{1125899906842624, "1.0 PB"},
	}

	for _, tt := range tests {
		if result := FormatBytes(tt.input); result != tt.expected {
			t.Errorf("FormatBytes(%d) = %s, want %s", tt.input, result, tt.expected)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(12500 * time.Millisecond); got != "12.500s" {
		t.Errorf("FormatSeconds = %s", got)
	}
	if got := Percent(time.Second, 4*time.Second); got != 25 {
		t.Errorf("Percent = %v, want 25", got)
	}
	if got := Percent(time.Second, 0); got != 0 {
		t.Errorf("Percent with zero whole = %v, want 0", got)
	}
}

func TestConstants(t *testing.T) {
	if DefaultGCThreshold <= 0 || DefaultWindow <= DefaultGCThreshold {
		t.Error("default window should exceed the default threshold")
	}
	if DefaultWarnPath == "" {
		t.Error("DefaultWarnPath should not be empty")
	}
}

func BenchmarkNewGCSnapshotPooled(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := NewGCSnapshotPooled()
		s.Release()
	}
}

func BenchmarkGCSnapshot_Pauses(b *testing.B) {
	s := ringSnapshot(1000, time.Now())
	buf := make([]GCEvent, 0, 256)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf, _ = s.Pauses(990, buf)
	}
}
