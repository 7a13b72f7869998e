package tracking

import (
	"math"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
)

func TestFitGlobalRecoversLine(t *testing.T) {
	geo := buildTelescope()
	fitter := NewFitter(geo)

	ev := event.NewEvent([]int32{1, 2, 3})
	ev.Clear(1, 0)
	addStraightCluster(ev.SensorEvent(1), 0, 0)
	addStraightCluster(ev.SensorEvent(2), 0.001, 0.002)
	addStraightCluster(ev.SensorEvent(3), 0.002, 0.004)

	track := event.Track{Clusters: []event.ClusterRef{
		{SensorID: 1, Cluster: 0},
		{SensorID: 2, Cluster: 0},
		{SensorID: 3, Cluster: 0},
	}}
	if err := fitter.FitGlobal(ev, &track); err != nil {
		t.Fatalf("FitGlobal: %v", err)
	}
	if math.Abs(track.Global.SlopeLoc0-0.01) > 1e-6 {
		t.Errorf("SlopeLoc0 = %v, want ~0.01", track.Global.SlopeLoc0)
	}
	if math.Abs(track.Global.SlopeLoc1-0.02) > 1e-6 {
		t.Errorf("SlopeLoc1 = %v, want ~0.02", track.Global.SlopeLoc1)
	}
	if track.Dof != 2 {
		t.Errorf("Dof = %d, want 2", track.Dof)
	}
}

func TestFitLocalUnbiasedExcludesReference(t *testing.T) {
	geo := buildTelescope()
	fitter := NewFitter(geo)

	ev := event.NewEvent([]int32{1, 2, 3})
	ev.Clear(1, 0)
	addStraightCluster(ev.SensorEvent(1), 0, 0)
	addStraightCluster(ev.SensorEvent(2), 0.001, 0.002)
	addStraightCluster(ev.SensorEvent(3), 0.002, 0.004)

	track := event.Track{Clusters: []event.ClusterRef{
		{SensorID: 1, Cluster: 0},
		{SensorID: 2, Cluster: 0},
		{SensorID: 3, Cluster: 0},
	}}

	biased, err := fitter.FitLocal(ev, &track, 2, false)
	if err != nil {
		t.Fatalf("FitLocal biased: %v", err)
	}
	unbiased, err := fitter.FitLocal(ev, &track, 2, true)
	if err != nil {
		t.Fatalf("FitLocal unbiased: %v", err)
	}
	// With a perfect line both should agree closely, but the unbiased fit
	// only uses 2 points (exact determination) while biased uses 3.
	if math.Abs(biased.SlopeLoc0-unbiased.SlopeLoc0) > 1e-6 {
		t.Errorf("biased/unbiased slope mismatch: %v vs %v", biased.SlopeLoc0, unbiased.SlopeLoc0)
	}
}
