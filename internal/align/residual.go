package align

import (
	"fmt"
	"math"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/hist"
	"gonum.org/v1/gonum/mat"
)

const residualRestrictedBins = 5

// sensorResidualHists holds the three correction histograms for one
// aligned sensor.
type sensorResidualHists struct {
	sensorID int32
	corrU *hist.Hist1D
	corrV *hist.Hist1D
	corrGamma *hist.Hist1D
}

// ResidualAligner aligns sensors from the restricted mean of
// per-track derived correction histograms.
type ResidualAligner struct {
	geo *geometry.Geometry
	damping float64
	hists []sensorResidualHists
}

// NewResidualAligner builds a ResidualAligner. pixelRange is the
// per-sensor histogram half-range in multiples of pixel pitch.
// gammaRange is the γ histogram half-range in radians.
func NewResidualAligner(geo *geometry.Geometry, sensors []*geometry.Sensor, damping, pixelRange, gammaRange float64, bins int) *ResidualAligner {
	a := &ResidualAligner{geo: geo, damping: damping}
	for _, sensor := range sensors {
		offsetRange := pixelRange * math.Hypot(sensor.PitchCol, sensor.PitchRow)
		a.hists = append(a.hists, sensorResidualHists{
			sensorID: sensor.ID,
			corrU: hist.NewHist1D(fmt.Sprintf("%s/correction_u", sensor.Name), -offsetRange, offsetRange, bins),
			corrV: hist.NewHist1D(fmt.Sprintf("%s/correction_v", sensor.Name), -offsetRange, offsetRange, bins),
			corrGamma: hist.NewHist1D(fmt.Sprintf("%s/correction_gamma", sensor.Name), -gammaRange, gammaRange, bins),
		})
	}
	return a
}

// Name implements pipeline.Analyzer.
func (a *ResidualAligner) Name() string { return "ResidualAligner" }

// Execute implements pipeline.Analyzer: for every in-track cluster on
// an aligned sensor, derive (du, dv, dγ) from the residual and the
// track's on-plane position, and fill the correction histograms.
func (a *ResidualAligner) Execute(ev *event.Event) error {
	for i := range a.hists {
		h := &a.hists[i]
		se := ev.SensorEvent(h.sensorID)
		if se == nil {
			return fmt.Errorf("align: sensor %d missing from event", h.sensorID)
		}
		for ci := range se.Clusters {
			clu := &se.Clusters[ci]
			if !clu.InTrack() {
				continue
			}
			state, ok := se.LocalStates[clu.Track]
			if !ok {
				continue
			}
			u, v := state.Loc0, state.Loc1
			ru := clu.LocalU - u
			rv := clu.LocalV - v
			f := 1 + u*u + v*v
			du := -(ru + ru*u*u + rv*u*v) / f
			dv := -(rv + rv*v*v + ru*u*v) / f
			dgamma := (ru*v - rv*u) / f

			h.corrU.Fill(du, 1)
			h.corrV.Fill(dv, 1)
			h.corrGamma.Fill(dgamma, 1)
		}
	}
	return nil
}

// Finalize implements pipeline.Analyzer; corrections are read via
// UpdatedGeometry after the loop finishes.
func (a *ResidualAligner) Finalize() error { return nil }

// UpdatedGeometry computes each sensor's restricted-mean correction,
// enforces that the global-frame z offset of the (du, dv) translation
// stays zero, and applies the damped six-parameter correction.
func (a *ResidualAligner) UpdatedGeometry() (*geometry.Geometry, error) {
	geo := a.geo.Clone()
	for _, h := range a.hists {
		du, varDU := h.corrU.RestrictedMean(residualRestrictedBins)
		dv, varDV := h.corrV.RestrictedMean(residualRestrictedBins)
		dgamma, varDGamma := h.corrGamma.RestrictedMean(residualRestrictedBins)

		plane := geo.Plane(h.sensorID)
		if plane == nil {
			return nil, fmt.Errorf("align: unknown sensor %d", h.sensorID)
		}
		// A pure in-plane (du, dv) offset can still carry a global-z
		// component once rotated; zero that component before applying the
		// correction so alignment never drifts the sensor along the beam.
		gx, gy, _ := plane.LocalToGlobal(du, dv, 0)
		_, _, oz := plane.LocalToGlobal(0, 0, 0)
		duCorrected, dvCorrected, dwCorrected := plane.GlobalToLocal(gx, gy, oz)

		delta := [6]float64{
			a.damping * duCorrected,
			a.damping * dvCorrected,
			a.damping * dwCorrected,
			0,
			0,
			a.damping * dgamma,
		}
		covMat := mat.NewDense(6, 6, nil)
		covMat.Set(0, 0, varDU)
		covMat.Set(1, 1, varDV)
		covMat.Set(5, 5, varDGamma)
		if err := geo.CorrectLocal(h.sensorID, delta, covMat); err != nil {
			return nil, err
		}
	}
	return geo, nil
}
