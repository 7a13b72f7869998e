package align

import (
	"math"
	"testing"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

func buildOneSensorForResidual() (*geometry.Geometry, *geometry.Sensor) {
	plane := geometry.IdentityPlane(1, [3]float64{0, 0, 0})
	geo := geometry.NewGeometry([]*geometry.Plane{plane}, [3]float64{0, 0, 1}, nil)
	sensor, err := geometry.NewSensor(1, "dut0", geometry.MeasurementBinary, 100, 100, 1e-5, 1e-5, 1, 0, 0, nil)
	if err != nil {
		panic(err)
	}
	return geo, sensor
}

func TestResidualAlignerRecoversOffset(t *testing.T) {
	geo, sensor := buildOneSensorForResidual()
	aligner := NewResidualAligner(geo, []*geometry.Sensor{sensor}, 1.0, 5.0, 0.01, 100)

	const trueDu = 0.0003
	for i := 0; i < 50; i++ {
		ev := event.NewEvent([]int32{1})
		ev.Clear(uint64(i), 0)
		se := ev.SensorEvent(1)
		_, _ = se.AddCluster(event.Cluster{
			LocalU: trueDu,
			LocalV: 0,
			Track: 0,
			MatchedState: event.NoIndex,
		})
		state := event.NewTrackState()
		state.Loc0, state.Loc1 = 0, 0
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
	// the correction is minus the residual: the plane moves to -trueDu so
	// the cluster's global position lands on the track.
	if math.Abs(p.Origin[0]-(-trueDu)) > 1e-6 {
		t.Errorf("origin x = %v, want ~%v", p.Origin[0], -trueDu)
	}
}

func TestResidualAlignerZeroWhenNoTracks(t *testing.T) {
	geo, sensor := buildOneSensorForResidual()
	aligner := NewResidualAligner(geo, []*geometry.Sensor{sensor}, 1.0, 5.0, 0.01, 100)

	updated, err := aligner.UpdatedGeometry()
	if err != nil {
		t.Fatalf("UpdatedGeometry: %v", err)
	}
	p := updated.Plane(1)
	if math.Abs(p.Origin[0]) > 1e-12 {
		t.Errorf("origin x = %v, want 0 with no contributions", p.Origin[0])
	}
}
