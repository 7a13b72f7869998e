package align

import (
	"math"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

func buildThreeSensorChain() *geometry.Geometry {
	p0 := geometry.IdentityPlane(0, [3]float64{0, 0, 0})
	p1 := geometry.IdentityPlane(1, [3]float64{0, 0, 0.1})
	p2 := geometry.IdentityPlane(2, [3]float64{0, 0, 0.2})
	return geometry.NewGeometry([]*geometry.Plane{p0, p1, p2}, [3]float64{0, 0, 1}, nil)
}

func TestCorrelationAlignerRecoversOffsets(t *testing.T) {
	geo := buildThreeSensorChain()
	aligner, err := NewCorrelationAligner(geo, 1, []int32{0, 2}, 1.0, 0.01, 200)
	if err != nil {
		t.Fatalf("NewCorrelationAligner: %v", err)
	}

	// offsets sit on diff-histogram bin centres (bin width 1e-4), since the
	// restricted mean of a single filled bin is that bin's centre.
	const dx0 = 0.00075 // true misalignment of sensor 0 relative to sensor 1
	const dx2 = -0.00045
	for i := 0; i < 30; i++ {
		ev := event.NewEvent([]int32{0, 1, 2})
		ev.Clear(uint64(i), 0)
		se0 := ev.SensorEvent(0)
		se1 := ev.SensorEvent(1)
		se2 := ev.SensorEvent(2)
		_, _ = se0.AddCluster(event.Cluster{LocalU: dx0, LocalV: 0, Track: event.NoIndex, MatchedState: event.NoIndex})
		_, _ = se1.AddCluster(event.Cluster{LocalU: 0, LocalV: 0, Track: event.NoIndex, MatchedState: event.NoIndex})
		_, _ = se2.AddCluster(event.Cluster{LocalU: dx2, LocalV: 0, Track: event.NoIndex, MatchedState: event.NoIndex})

		if err := aligner.Execute(ev); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	updated, err := aligner.UpdatedGeometry()
	if err != nil {
		t.Fatalf("UpdatedGeometry: %v", err)
	}
	// sensor 0 should move by -dx0 (diffX was filled as sensor1-sensor0 =
	// -dx0, and correctGlobalOffset is applied with that value directly).
	if got := updated.Plane(0).Origin[0]; math.Abs(got-(-dx0)) > 1e-6 {
		t.Errorf("sensor 0 origin x = %v, want ~%v", got, -dx0)
	}
	// forward-direction corrections are applied with the opposite sign:
	// sensor 2 ends up shifted by -dx2, not +dx2.
	if got := updated.Plane(2).Origin[0]; math.Abs(got-(-dx2)) > 1e-6 {
		t.Errorf("sensor 2 origin x = %v, want ~%v", got, -dx2)
	}
	if got := updated.Plane(1).Origin[0]; got != 0 {
		t.Errorf("fixed sensor 1 origin x = %v, want 0", got)
	}
}

func TestNewCorrelationAlignerRejectsUnknownFixedSensor(t *testing.T) {
	geo := buildThreeSensorChain()
	if _, err := NewCorrelationAligner(geo, 99, []int32{0, 2}, 1.0, 0.01, 200); err == nil {
		t.Fatal("expected error for unknown fixed sensor")
	}
}
