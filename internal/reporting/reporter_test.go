package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kyungseok-lee/go-gcquake/internal/analysis"
	"github.com/kyungseok-lee/go-gcquake/internal/config"
	"github.com/kyungseok-lee/go-gcquake/pkg/types"
)

func createTestStatus() *types.Status {
	attached := time.Now().Add(-10 * time.Minute)
	return &types.Status{
		AgentID:        "5f0c3a9e-1a2b-4c3d-9e8f-0123456789ab",
		PID:            4242,
		AttachedAt:     attached,
		Uptime:         10 * time.Minute,
		Options:        "threshold=[30s],window=[3m0s],action=[oom]",
		GCThreshold:    30 * time.Second,
		Window:         3 * time.Minute,
		Classification: types.Normal,
		State: types.WindowState{
			Epoch:         3,
			Start:         9 * time.Minute,
			Accumulated:   6 * time.Second,
			PausesInEpoch: 120,
		},
		TotalPauses: 900,
		TotalGCTime: 45 * time.Second,
		RSS:         256 * 1024 * 1024,
		Timestamp:   time.Now(),
	}
}

func createTestEvents(count int) []types.GCEvent {
	events := make([]types.GCEvent, count)
	baseTime := time.Now()

	for i := 0; i < count; i++ {
		events[i] = types.GCEvent{
			Sequence:  uint32(i + 1),
			StartTime: baseTime.Add(time.Duration(i) * time.Second),
			EndTime:   baseTime.Add(time.Duration(i)*time.Second + 500*time.Microsecond),
			Duration:  500 * time.Microsecond,
		}
	}
	return events
}

func TestGenerateTextReport(t *testing.T) {
	reporter := New(createTestStatus(), createTestEvents(10))

	var buf bytes.Buffer
	if err := reporter.GenerateTextReport(&buf); err != nil {
		t.Fatalf("GenerateTextReport() error: %v", err)
	}

	output := buf.String()
	expected := []string{
		"gcquake Agent Status",
		"pid 4242",
		"Classification: normal",
		"Epoch: 3",
		"Accumulated GC Time: 6.000s of 30.000s (20.0%)",
		"GC Pauses: 900",
		"7.50% of uptime",
		"RSS: 256.0 MB",
		"Recent Pauses",
		"Count: 10",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("text report missing %q\n%s", want, output)
		}
	}
}

func TestGenerateTextReport_NoStatus(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil, nil).GenerateTextReport(&buf)
	if !errors.Is(err, ErrNoStatusData) {
		t.Errorf("expected ErrNoStatusData, got %v", err)
	}
}

func TestGenerateJSONReport(t *testing.T) {
	reporter := New(createTestStatus(), createTestEvents(2))

	var buf bytes.Buffer
	if err := reporter.GenerateJSONReport(&buf, true); err != nil {
		t.Fatalf("GenerateJSONReport() error: %v", err)
	}

	var decoded struct {
		Status struct {
			Classification string `json:"classification"`
			PID            int    `json:"pid"`
		} `json:"status"`
		Health HealthCheckStatus `json:"health"`
		Events []types.GCEvent   `json:"events"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if decoded.Status.Classification != "normal" {
		t.Errorf("classification = %q, want normal", decoded.Status.Classification)
	}
	if decoded.Status.PID != 4242 {
		t.Errorf("pid = %d, want 4242", decoded.Status.PID)
	}
	if decoded.Health.Status != "healthy" {
		t.Errorf("health = %q, want healthy", decoded.Health.Status)
	}
	if len(decoded.Events) != 2 {
		t.Errorf("events = %d, want 2", len(decoded.Events))
	}
}

func TestGenerateEventsReport(t *testing.T) {
	var buf bytes.Buffer
	if err := New(createTestStatus(), createTestEvents(3)).GenerateEventsReport(&buf); err != nil {
		t.Fatalf("GenerateEventsReport() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "GC Events Report") {
		t.Error("missing title")
	}
	if strings.Count(output, "500µs") != 3 {
		t.Errorf("expected 3 event rows\n%s", output)
	}

	buf.Reset()
	if err := New(createTestStatus(), nil).GenerateEventsReport(&buf); !errors.Is(err, ErrNoEventsData) {
		t.Errorf("expected ErrNoEventsData, got %v", err)
	}
}

func TestGenerateHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*types.Status)
		wantStatus string
		wantScore  int
		wantIssues int
	}{
		{
			name:       "healthy",
			modify:     func(*types.Status) {},
			wantStatus: "healthy",
			wantScore:  100,
		},
		{
			name:       "warning",
			modify:     func(s *types.Status) { s.Classification = types.Warning },
			wantStatus: "warning",
			wantScore:  70,
			wantIssues: 1,
		},
		{
			name: "warning with lost pauses",
			modify: func(s *types.Status) {
				s.Classification = types.Warning
				s.LostPauses = 12
			},
			wantStatus: "warning",
			wantScore:  60,
			wantIssues: 2,
		},
		{
			name: "enforced",
			modify: func(s *types.Status) {
				s.Classification = types.Enforcing
				s.Enforced = true
				s.EnforceErrors = 1
			},
			wantStatus: "critical",
			wantScore:  0,
			wantIssues: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := createTestStatus()
			tt.modify(status)

			health := New(status, nil).GenerateHealthCheck()
			if health.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", health.Status, tt.wantStatus)
			}
			if health.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", health.Score, tt.wantScore)
			}
			if len(health.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d", health.Issues, tt.wantIssues)
			}
		})
	}
}

func TestGenerateHealthCheck_NoStatus(t *testing.T) {
	health := New(nil, nil).GenerateHealthCheck()
	if health.Status != "unknown" {
		t.Errorf("Status = %q, want unknown", health.Status)
	}
}

func runSimulation(t *testing.T) *analysis.Simulation {
	t.Helper()
	trace := &analysis.Trace{}
	for i := 1; i <= 10; i++ {
		trace.Pauses = append(trace.Pauses, analysis.TracePause{
			At:       time.Duration(i) * 5 * time.Second,
			Duration: 2 * time.Second,
		})
	}
	sim, err := analysis.Simulate(config.MustParse("10,60,6,warn=4"), trace)
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	return sim
}

func TestGenerateSimulationReport(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateSimulationReport(&buf, runSimulation(t)); err != nil {
		t.Fatalf("GenerateSimulationReport() error: %v", err)
	}

	output := buf.String()
	expected := []string{
		"gcquake Simulation",
		"enforced (signal 6 (SIGABRT)) at +25.000s",
		"Warnings At: +10.000s",
		"Recommendations",
		"Classification",
		"enforcing",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("simulation report missing %q\n%s", want, output)
		}
	}
}

func TestGenerateSimulationJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateSimulationJSON(&buf, runSimulation(t), false); err != nil {
		t.Fatalf("GenerateSimulationJSON() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["enforced"] != true {
		t.Errorf("enforced = %v, want true", decoded["enforced"])
	}
	if decoded["final"] != "enforcing" {
		t.Errorf("final = %v, want enforcing", decoded["final"])
	}

	if err := GenerateSimulationJSON(&buf, nil, false); !errors.Is(err, ErrNoSimulationData) {
		t.Errorf("expected ErrNoSimulationData, got %v", err)
	}
}

func BenchmarkGenerateTextReport(b *testing.B) {
	reporter := New(createTestStatus(), createTestEvents(100))
	var buf bytes.Buffer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = reporter.GenerateTextReport(&buf)
	}
}
