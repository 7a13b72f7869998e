// Package align implements three alignment solvers: a per-sensor local
// chi² minimization, a residual-histogram aligner, and a
// correlation-histogram aligner. Each accumulates state across an
// event loop (as an Analyzer would) and then produces a corrected
// Geometry.
package align

import (
	"fmt"
	"math"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/teleerr"
	"github.com/banshee-data/proteusgo/internal/telelog"
	"gonum.org/v1/gonum/mat"
)

// svdRankThreshold mirrors a standard Jacobi-SVD rank cut: singular
// values below threshold*sigmaMax are treated as zero.
const svdRankThreshold = 4096 * 2.220446049250313e-16

// planeFitter accumulates the local chi² normal equations for one
// sensor across every track with a cluster on that sensor.
type planeFitter struct {
	fr *mat.Dense // 6x6, accumulated JᵀWJ
	y *mat.VecDense
	numTracks int
}

func newPlaneFitter() *planeFitter {
	return &planeFitter{fr: mat.NewDense(6, 6, nil), y: mat.NewVecDense(6, nil)}
}

// jacobianOffsetAlignment builds the 2x6 Jacobian mapping
// [du,dv,dw,dalpha,dbeta,dgamma] to changes in the track's local
// (u,v) offset, following V. Karimaeki et al. 2003 with the sign
// convention required by Plane.CorrectLocal.
func jacobianOffsetAlignment(offsetU, offsetV, slopeU, slopeV float64) *mat.Dense {
	return mat.NewDense(2, 6, []float64{
		-1, 0, slopeU, slopeU * offsetV, -slopeU * offsetU, offsetV,
		0, -1, slopeV, slopeV * offsetV, -slopeV * offsetU, -offsetU,
	})
}

// addTrack folds one track/cluster pair into the normal equations.
// Returns false (and adds nothing) if any input is non-finite.
func (f *planeFitter) addTrack(state event.TrackState, cluster *event.Cluster, weight [2][2]float64) bool {
	inputs := []float64{
		state.Loc0, state.Loc1, state.SlopeLoc0, state.SlopeLoc1,
		cluster.LocalU, cluster.LocalV,
		weight[0][0], weight[0][1], weight[1][0], weight[1][1],
	}
	for _, v := range inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	jac := jacobianOffsetAlignment(state.Loc0, state.Loc1, state.SlopeLoc0, state.SlopeLoc1)
	w := mat.NewDense(2, 2, []float64{weight[0][0], weight[0][1], weight[1][0], weight[1][1]})

	var jtw, jtwj mat.Dense
	jtw.Mul(jac.T(), w)
	jtwj.Mul(&jtw, jac)
	f.fr.Add(f.fr, &jtwj)

	res := mat.NewVecDense(2, []float64{cluster.LocalU - state.Loc0, cluster.LocalV - state.Loc1})
	var jtwr mat.VecDense
	jtwr.MulVec(&jtw, res)
	f.y.AddVec(f.y, &jtwr)

	f.numTracks++
	return true
}

// minimize solves a = F⁻¹y via a full-U/V Jacobi SVD pseudo-inverse,
// zeroing singular values below svdRankThreshold * sigmaMax, and
// reports the parameter covariance F⁻¹ (the pseudo-inverse itself).
// ok is false when the effective rank is below 2.
func (f *planeFitter) minimize() (delta [6]float64, cov [6][6]float64, ok bool) {
	var svd mat.SVD
	if !svd.Factorize(f.fr, mat.SVDFull) {
		return delta, cov, false
	}
	values := svd.Values(nil)
	u := svd.UTo(nil)
	v := svd.VTo(nil)

	sigmaMax := 0.0
	for _, s := range values {
		if s > sigmaMax {
			sigmaMax = s
		}
	}
	threshold := svdRankThreshold * sigmaMax

	rank := 0
	inv := make([]float64, len(values))
	for i, s := range values {
		if s > threshold {
			inv[i] = 1 / s
			rank++
		}
	}
	if rank < 2 {
		return delta, cov, false
	}

	// pinv = V * diag(inv) * Uᵀ
	sigmaInv := mat.NewDense(6, 6, nil)
	for i, iv := range inv {
		sigmaInv.Set(i, i, iv)
	}
	var vSigma, pinv mat.Dense
	vSigma.Mul(v, sigmaInv)
	pinv.Mul(&vSigma, u.T())

	var deltaVec mat.VecDense
	deltaVec.MulVec(&pinv, f.y)
	for i := 0; i < 6; i++ {
		delta[i] = deltaVec.AtVec(i)
		for j := 0; j < 6; j++ {
			cov[i][j] = pinv.At(i, j)
		}
	}
	return delta, cov, true
}

// LocalChi2Aligner is the per-sensor local chi² alignment solver.
type LocalChi2Aligner struct {
	geo *geometry.Geometry
	sensorIDs []int32
	damping float64
	fitters map[int32]*planeFitter
}

// NewLocalChi2Aligner builds a LocalChi2Aligner over the given sensors.
func NewLocalChi2Aligner(geo *geometry.Geometry, sensorIDs []int32, damping float64) *LocalChi2Aligner {
	fitters := make(map[int32]*planeFitter, len(sensorIDs))
	for _, id := range sensorIDs {
		fitters[id] = newPlaneFitter()
	}
	return &LocalChi2Aligner{geo: geo, sensorIDs: sensorIDs, damping: damping, fitters: fitters}
}

// Name implements pipeline.Analyzer.
func (a *LocalChi2Aligner) Name() string { return "LocalChi2Aligner" }

// Execute implements pipeline.Analyzer: it folds every in-track cluster
// on an aligned sensor, paired with its track's local state, into that
// sensor's fitter.
func (a *LocalChi2Aligner) Execute(ev *event.Event) error {
	for _, sensorID := range a.sensorIDs {
		se := ev.SensorEvent(sensorID)
		if se == nil {
			return fmt.Errorf("align: sensor %d missing from event", sensorID)
		}
		fitter := a.fitters[sensorID]
		for ci := range se.Clusters {
			clu := &se.Clusters[ci]
			if !clu.InTrack() {
				continue
			}
			state, ok := se.LocalStates[clu.Track]
			if !ok {
				continue
			}
			cluCov := clu.CovLocalUV()
			stateCov := state.CovOffset()
			sum := [2][2]float64{
				{cluCov[0][0] + stateCov[0][0], cluCov[0][1] + stateCov[0][1]},
				{cluCov[1][0] + stateCov[1][0], cluCov[1][1] + stateCov[1][1]},
			}
			weight, invertible := invert2x2(sum)
			if !invertible {
				telelog.EventFault(ev.Frame, sensorID, "local chi2 aligner: singular residual covariance for track %d", clu.Track)
				continue
			}
			if !fitter.addTrack(state, clu, weight) {
				telelog.EventFault(ev.Frame, sensorID, "local chi2 aligner: non-finite track/cluster input, track %d", clu.Track)
			}
		}
	}
	return nil
}

// Finalize implements pipeline.Analyzer; the alignment correction is
// retrieved afterward via UpdatedGeometry, not at Finalize time.
func (a *LocalChi2Aligner) Finalize() error { return nil }

// UpdatedGeometry solves each aligned sensor's normal equations and
// returns a corrected Geometry. A sensor whose normal equations cannot
// be solved (effective rank < 2) aborts the iteration with an error.
func (a *LocalChi2Aligner) UpdatedGeometry() (*geometry.Geometry, error) {
	geo := a.geo.Clone()
	for _, sensorID := range a.sensorIDs {
		fitter := a.fitters[sensorID]
		delta, cov, ok := fitter.minimize()
		if !ok {
			return nil, teleerr.NewAlignmentFailure(sensorID, "local chi2 aligner: could not solve normal equations (effective rank < 2)")
		}
		for i := range delta {
			delta[i] *= a.damping
		}
		covMat := mat.NewDense(6, 6, nil)
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				covMat.Set(i, j, cov[i][j])
			}
		}
		if err := geo.CorrectLocal(sensorID, delta, covMat); err != nil {
			return nil, err
		}
	}
	return geo, nil
}

func invert2x2(m [2][2]float64) (inv [2][2]float64, ok bool) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if det == 0 {
		return inv, false
	}
	inv[0][0] = m[1][1] / det
	inv[0][1] = -m[0][1] / det
	inv[1][0] = -m[1][0] / det
	inv[1][1] = m[0][0] / det
	return inv, true
}
