package match

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
)

func newTestSensorEvent() *event.SensorEvent {
	return event.NewSensorEvent(1)
}

func TestMatcherPairsClosestUnique(t *testing.T) {
	se := newTestSensorEvent()
	se.Clusters = []event.Cluster{
		{LocalU: 0.0, LocalV: 0.0, CovLocal: [4][4]float64{{1e-6, 0, 0, 0}, {0, 1e-6, 0, 0}}, Track: event.NoIndex, MatchedState: event.NoIndex},
		{LocalU: 1.0, LocalV: 1.0, CovLocal: [4][4]float64{{1e-6, 0, 0, 0}, {0, 1e-6, 0, 0}}, Track: event.NoIndex, MatchedState: event.NoIndex},
	}
	s0 := event.NewTrackState()
	s0.Loc0, s0.Loc1 = 0.01, 0.01
	s1 := event.NewTrackState()
	s1.Loc0, s1.Loc1 = 1.01, 1.01
	se.LocalStates[0] = s0
	se.LocalStates[1] = s1

	m := NewMatcher(1, "DUT", -1)
	fakeEvent := wrapSensorEvent(se)
	if err := m.Execute(fakeEvent); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if se.Clusters[0].MatchedState != 0 {
		t.Errorf("cluster 0 matched state = %d, want 0", se.Clusters[0].MatchedState)
	}
	if se.Clusters[1].MatchedState != 1 {
		t.Errorf("cluster 1 matched state = %d, want 1", se.Clusters[1].MatchedState)
	}
}

func TestMatcherRespectsDistanceCut(t *testing.T) {
	se := newTestSensorEvent()
	se.Clusters = []event.Cluster{
		{LocalU: 5.0, LocalV: 5.0, CovLocal: [4][4]float64{{1e-6, 0, 0, 0}, {0, 1e-6, 0, 0}}, Track: event.NoIndex, MatchedState: event.NoIndex},
	}
	s0 := event.NewTrackState()
	s0.Loc0, s0.Loc1 = 0, 0
	se.LocalStates[0] = s0

	m := NewMatcher(1, "DUT", 1.0)
	fakeEvent := wrapSensorEvent(se)
	if err := m.Execute(fakeEvent); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if se.Clusters[0].MatchedState != event.NoIndex {
		t.Errorf("expected no match under distance cut, got %d", se.Clusters[0].MatchedState)
	}
}

// wrapSensorEvent builds a minimal Event exposing se under sensorID 1,
// for unit-testing Matcher.Execute without a full event package fixture.
func wrapSensorEvent(se *event.SensorEvent) *event.Event {
	ev := event.NewEvent([]int32{1})
	ev.Sensors[0] = se
	return ev
}
