package binformat

import (
	"path/filepath"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
)

func buildSampleEvent() *event.Event {
	ev := event.NewEvent([]int32{0, 1})
	ev.Clear(42, 1000)
	ev.Trigger = event.Trigger{Time: 999, Offset: 3, Info: 7, Phase: -1}
	ev.Invalid = false

	se0 := ev.SensorEvent(0)
	hi := se0.AddHit(event.Hit{Col: 10, Row: 20, Timestamp: 5, Value: 100})
	_, _ = se0.AddCluster(event.Cluster{
		CentroidCol: 10, CentroidRow: 20,
		CovPixel: [2][2]float64{{0.08, 0}, {0, 0.08}},
		Time: 5, SumValue: 100,
		Track: event.NoIndex, MatchedState: event.NoIndex,
		Hits: []int32{hi},
	})
	se0.Clusters[0].Track = 0
	se0.SetLocalState(0, event.TrackState{Loc0: 0.001, Loc1: -0.002, SlopeLoc0: 0.01, SlopeLoc1: -0.01, MatchedCluster: event.NoIndex})

	se1 := ev.SensorEvent(1)
	hi1 := se1.AddHit(event.Hit{Col: 11, Row: 21, Timestamp: 5, Value: 90})
	_, _ = se1.AddCluster(event.Cluster{
		CentroidCol: 11, CentroidRow: 21,
		CovPixel: [2][2]float64{{0.08, 0}, {0, 0.08}},
		Time: 5, SumValue: 90,
		Track: event.NoIndex, MatchedState: event.NoIndex,
		Hits: []int32{hi1},
	})
	se1.Clusters[0].Track = 0
	se1.SetLocalState(0, event.TrackState{Loc0: 0.0012, Loc1: -0.0019, SlopeLoc0: 0.01, SlopeLoc1: -0.01, MatchedCluster: event.NoIndex})

	ev.Tracks = append(ev.Tracks, event.Track{
		Global: event.TrackState{Loc0: 1.5, Loc1: -2.5, SlopeLoc0: 0.01, SlopeLoc1: -0.01, MatchedCluster: event.NoIndex},
		Chi2: 2.3, Dof: 1,
		Clusters: []event.ClusterRef{{SensorID: 0, Cluster: 0}, {SensorID: 1, Cluster: 0}},
	})

	return ev
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ptbin")
	sensorIDs := []int32{0, 1}

	w, err := NewWriter(path, sensorIDs)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	original := buildSampleEvent()
	if err := w.Append(original); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path, sensorIDs)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if n, known := r.AvailableEvents(); !known || n != 1 {
		t.Fatalf("AvailableEvents = (%d, %v), want (1, true)", n, known)
	}

	got := event.NewEvent(sensorIDs)
	more, err := r.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !more {
		t.Fatal("Read reported no event, want one")
	}

	if got.Frame != 42 || got.Timestamp != 1000 {
		t.Errorf("Frame/Timestamp = %d/%d, want 42/1000", got.Frame, got.Timestamp)
	}
	if got.Trigger.Time != 999 || got.Trigger.Offset != 3 || got.Trigger.Info != 7 || got.Trigger.Phase != -1 {
		t.Errorf("Trigger = %+v, want {999 3 7 -1}", got.Trigger)
	}

	se0 := got.SensorEvent(0)
	if len(se0.Hits) != 1 || se0.Hits[0].Col != 10 || se0.Hits[0].Row != 20 {
		t.Errorf("sensor 0 hits = %+v", se0.Hits)
	}
	if len(se0.Clusters) != 1 || se0.Clusters[0].CentroidCol != 10 {
		t.Errorf("sensor 0 clusters = %+v", se0.Clusters)
	}
	if len(se0.Clusters[0].Hits) != 1 || se0.Clusters[0].Hits[0] != 0 {
		t.Errorf("sensor 0 cluster hits = %v, want [0]", se0.Clusters[0].Hits)
	}
	state, ok := se0.LocalStates[0]
	if !ok || state.Loc0 != 0.001 {
		t.Errorf("sensor 0 local state = %+v, ok=%v", state, ok)
	}

	if len(got.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(got.Tracks))
	}
	tr := got.Tracks[0]
	if tr.Global.Loc0 != 1.5 || tr.Global.Loc1 != -2.5 {
		t.Errorf("track global = %+v", tr.Global)
	}
	if tr.Chi2 != 2.3 || tr.Dof != 1 {
		t.Errorf("track chi2/dof = %v/%d", tr.Chi2, tr.Dof)
	}
	if len(tr.Clusters) != 2 {
		t.Errorf("track clusters = %+v, want 2 entries", tr.Clusters)
	}

	more, err = r.Read(got)
	if err != nil {
		t.Fatalf("second Read: %v", err)
	}
	if more {
		t.Error("expected end of file on second Read")
	}
}

func TestWriterRejectsSensorCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ptbin")
	w, err := NewWriter(path, []int32{0, 1})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ev := event.NewEvent([]int32{0})
	ev.Clear(0, 0)
	if err := w.Append(ev); err == nil {
		t.Fatal("expected error for sensor count mismatch")
	}
}

func TestReaderSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ptbin")
	sensorIDs := []int32{0, 1}

	w, err := NewWriter(path, sensorIDs)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	ev := event.NewEvent(sensorIDs)
	for i := uint64(0); i < 3; i++ {
		ev.Clear(i, i*10)
		if err := w.Append(ev); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path, sensorIDs)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if err := r.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	got := event.NewEvent(sensorIDs)
	more, err := r.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !more {
		t.Fatal("expected an event after skip")
	}
	if got.Frame != 2 {
		t.Errorf("Frame = %d, want 2", got.Frame)
	}
}
