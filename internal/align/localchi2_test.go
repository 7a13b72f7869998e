package align

import (
	"math"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

func buildOnePlaneGeometry() *geometry.Geometry {
	plane := geometry.IdentityPlane(1, [3]float64{0, 0, 0})
	return geometry.NewGeometry([]*geometry.Plane{plane}, [3]float64{0, 0, 1}, nil)
}

func TestLocalChi2AlignerRecoversOffset(t *testing.T) {
	geo := buildOnePlaneGeometry()
	aligner := NewLocalChi2Aligner(geo, []int32{1}, 1.0)

	const trueDu = 0.0005
	for i := 0; i < 20; i++ {
		ev := event.NewEvent([]int32{1})
		ev.Clear(uint64(i), 0)
		se := ev.SensorEvent(1)
		_, _ = se.AddCluster(event.Cluster{
			LocalU: trueDu,
			LocalV: 0,
			CovLocal: [4][4]float64{{1e-8, 0, 0, 0}, {0, 1e-8, 0, 0}},
			Track: 0,
			MatchedState: event.NoIndex,
		})
		state := event.NewTrackState()
		state.Loc0, state.Loc1 = 0, 0
		state.SlopeLoc0, state.SlopeLoc1 = 0, 0
		se.LocalStates[0] = state

		if err := aligner.Execute(ev); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	updated, err := aligner.UpdatedGeometry()
	if err != nil {
		t.Fatalf("UpdatedGeometry: %v", err)
	}
	p := updated.Plane(1)
	// du correction moves the plane's origin to -trueDu in global x
	// (identity rotation, beam along z), bringing the cluster onto the track.
	if math.Abs(p.Origin[0]-(-trueDu)) > 1e-6 {
		t.Errorf("origin x = %v, want ~%v", p.Origin[0], -trueDu)
	}
}

func TestLocalChi2AlignerFailsOnRankDeficiency(t *testing.T) {
	geo := buildOnePlaneGeometry()
	aligner := NewLocalChi2Aligner(geo, []int32{1}, 1.0)
	// no tracks added: normal equations are all zero, rank 0
	if _, err := aligner.UpdatedGeometry(); err == nil {
		t.Fatal("expected alignment failure for empty fitter")
	}
}
