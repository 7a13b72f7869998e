package tracking

import (
	"fmt"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
)

// Fitter fits straight-line track states, globally and in a chosen
// reference sensor's local frame.
type Fitter struct {
	geo *geometry.Geometry
}

// NewFitter builds a Fitter against a fixed geometry snapshot.
func NewFitter(geo *geometry.Geometry) *Fitter { return &Fitter{geo: geo} }

// FitGlobal fits t.Global from the global positions of t's constituent
// clusters, treating global z as the independent variable.
// It sets t.Global, t.Chi2, and t.Dof.
func (f *Fitter) FitGlobal(ev *event.Event, t *event.Track) error {
	var fit lineFit3D
	for _, ref := range t.Clusters {
		se := ev.SensorEvent(ref.SensorID)
		if se == nil {
			return fmt.Errorf("tracking: unknown sensor %d in track", ref.SensorID)
		}
		clu := &se.Clusters[ref.Cluster]
		plane := f.geo.Plane(ref.SensorID)
		if plane == nil {
			return fmt.Errorf("tracking: no plane for sensor %d", ref.SensorID)
		}
		x, y, z := plane.LocalToGlobal(clu.LocalU, clu.LocalV, clu.LocalW)
		covXY := plane.CovLocalToGlobalXY(clu.CovLocalUV())
		fit.addPoint(z, x, y, 1/covXY[0][0], 1/covXY[1][1])
	}
	fit.fit()
	t.Global = fit.state()
	t.Chi2 = fit.chi2()
	t.Dof = int32(2 * (len(t.Clusters) - 2))
	return nil
}

// FitLocal fits a local TrackState in the reference sensor's frame from
// t's constituent clusters, treating each cluster's local w in the
// reference frame as the independent variable. When
// unbiased is true, the cluster on the reference sensor itself (if any)
// is excluded from the fit.
func (f *Fitter) FitLocal(ev *event.Event, t *event.Track, referenceSensorID int32, unbiased bool) (event.TrackState, error) {
	target := f.geo.Plane(referenceSensorID)
	if target == nil {
		return event.TrackState{}, fmt.Errorf("tracking: unknown reference sensor %d", referenceSensorID)
	}
	var fit lineFit3D
	for _, ref := range t.Clusters {
		if unbiased && ref.SensorID == referenceSensorID {
			continue
		}
		se := ev.SensorEvent(ref.SensorID)
		if se == nil {
			return event.TrackState{}, fmt.Errorf("tracking: unknown sensor %d in track", ref.SensorID)
		}
		clu := &se.Clusters[ref.Cluster]
		source := f.geo.Plane(ref.SensorID)
		if source == nil {
			return event.TrackState{}, fmt.Errorf("tracking: no plane for sensor %d", ref.SensorID)
		}
		tu, tv, tw, varU, varV := geometry.TransformLocalToLocal(source, target, clu.LocalU, clu.LocalV, clu.CovLocalUV())
		fit.addPoint(tw, tu, tv, 1/varU, 1/varV)
	}
	fit.fit()
	return fit.state(), nil
}
