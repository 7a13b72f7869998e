package analyze

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

func buildTwoSensorGeometry(t *testing.T) *geometry.Geometry {
	t.Helper()
	p0 := geometry.IdentityPlane(0, [3]float64{0, 0, 0})
	p1 := geometry.IdentityPlane(1, [3]float64{0, 0, 0.1})
	return geometry.NewGeometry([]*geometry.Plane{p0, p1}, [3]float64{0, 0, 1}, nil)
}

func TestCorrelationAnalyzerFillsDiffHistogram(t *testing.T) {
	geo := buildTwoSensorGeometry(t)
	a, err := NewCorrelationAnalyzer(geo, []int32{0, 1}, 1, 0.01, 100)
	if err != nil {
		t.Fatalf("NewCorrelationAnalyzer: %v", err)
	}

	ev := event.NewEvent([]int32{0, 1})
	ev.Clear(0, 0)
	se0 := ev.SensorEvent(0)
	se1 := ev.SensorEvent(1)
	_, _ = se0.AddCluster(event.Cluster{LocalU: 0, LocalV: 0, Track: event.NoIndex, MatchedState: event.NoIndex})
	_, _ = se1.AddCluster(event.Cluster{LocalU: 0.002, LocalV: 0, Track: event.NoIndex, MatchedState: event.NoIndex})

	if err := a.Execute(ev); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	h := a.HistDiffX(0, 1)
	if h == nil {
		t.Fatal("expected diffX histogram for pair (0,1)")
	}
	if h.Entries() != 1 {
		t.Errorf("entries = %d, want 1", h.Entries())
	}
}

func TestNewCorrelationAnalyzerRejectsTooFewSensors(t *testing.T) {
	geo := buildTwoSensorGeometry(t)
	if _, err := NewCorrelationAnalyzer(geo, []int32{0}, 1, 0.01, 100); err == nil {
		t.Fatal("expected error for fewer than two sensors")
	}
}
