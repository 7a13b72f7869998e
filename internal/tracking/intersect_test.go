package tracking

import (
	"math"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
)

func TestIntersectorInstallsLocalStateOnEverySensor(t *testing.T) {
	geo := buildTelescope()
	finder, err := NewFinder(geo, []int32{1, 2, 3}, 3, -1, -1)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	intersector := NewIntersector(geo, []int32{1, 2, 3})

	ev := event.NewEvent([]int32{1, 2, 3})
	ev.Clear(1, 0)
	addStraightCluster(ev.SensorEvent(1), 0, 0)
	addStraightCluster(ev.SensorEvent(2), 0.001, 0.002)
	addStraightCluster(ev.SensorEvent(3), 0.002, 0.004)

	if err := finder.Execute(ev); err != nil {
		t.Fatalf("finder.Execute: %v", err)
	}
	if len(ev.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(ev.Tracks))
	}
	if err := intersector.Execute(ev); err != nil {
		t.Fatalf("intersector.Execute: %v", err)
	}

	for _, sensorID := range []int32{1, 2, 3} {
		se := ev.SensorEvent(sensorID)
		state, ok := se.LocalStates[0]
		if !ok {
			t.Fatalf("sensor %d: no local state installed", sensorID)
		}
		if state.MatchedCluster != event.NoIndex {
			t.Errorf("sensor %d: MatchedCluster = %d, want NoIndex", sensorID, state.MatchedCluster)
		}
		if math.IsNaN(state.Loc0) || math.IsNaN(state.Loc1) {
			t.Errorf("sensor %d: local state has NaN position", sensorID)
		}
	}
}

func TestIntersectorUnbiasedExcludesOwnCluster(t *testing.T) {
	geo := buildTelescope()
	finder, err := NewFinder(geo, []int32{1, 2, 3}, 3, -1, -1)
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	intersector := NewIntersector(geo, []int32{2})

	ev := event.NewEvent([]int32{1, 2, 3})
	ev.Clear(1, 0)
	addStraightCluster(ev.SensorEvent(1), 0, 0)
	// sensor 2's cluster is off the true line; the unbiased local state
	// at sensor 2 must not be pulled toward it.
	addStraightCluster(ev.SensorEvent(2), 0.05, 0.05)
	addStraightCluster(ev.SensorEvent(3), 0.002, 0.004)

	if err := finder.Execute(ev); err != nil {
		t.Fatalf("finder.Execute: %v", err)
	}
	if len(ev.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(ev.Tracks))
	}
	if err := intersector.Execute(ev); err != nil {
		t.Fatalf("intersector.Execute: %v", err)
	}

	state := ev.SensorEvent(2).LocalStates[0]
	if math.Abs(state.Loc0-0.001) > 1e-6 || math.Abs(state.Loc1-0.002) > 1e-6 {
		t.Errorf("unbiased local state at sensor 2 = (%g, %g), want (~0.001, ~0.002)", state.Loc0, state.Loc1)
	}
}
