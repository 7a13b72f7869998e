package analyze

import (
	"fmt"
	"math"

	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/hist"
)

// sensorResidualHists is the full set of cluster-track residual
// diagnostics for one sensor.
type sensorResidualHists struct {
	resU, resV *hist.Hist1D
	resDist *hist.Hist1D
	resD2 *hist.Hist1D
	resUV *hist.Hist2D
	posUResU *hist.Hist2D
	posUResV *hist.Hist2D
	posVResU *hist.Hist2D
	posVResV *hist.Hist2D
	slopeUResU *hist.Hist2D
	slopeUResV *hist.Hist2D
	slopeVResU *hist.Hist2D
	slopeVResV *hist.Hist2D
}

func newSensorResidualHists(prefix string, resRange, posRangeU, posRangeV, slopeRange float64, bins int) *sensorResidualHists {
	return &sensorResidualHists{
		resU: hist.NewHist1D(prefix+"/res_u", -resRange, resRange, bins),
		resV: hist.NewHist1D(prefix+"/res_v", -resRange, resRange, bins),
		resDist: hist.NewHist1D(prefix+"/res_dist", 0, resRange, bins),
		resD2: hist.NewHist1D(prefix+"/res_d2", 0, 10*resRange, bins),
		resUV: hist.NewHist2D(prefix+"/res_uv", -resRange, resRange, bins, -resRange, resRange, bins),
		posUResU: hist.NewHist2D(prefix+"/res_u-position_u", -posRangeU, posRangeU, bins, -resRange, resRange, bins),
		posUResV: hist.NewHist2D(prefix+"/res_v-position_u", -posRangeU, posRangeU, bins, -resRange, resRange, bins),
		posVResU: hist.NewHist2D(prefix+"/res_u-position_v", -posRangeV, posRangeV, bins, -resRange, resRange, bins),
		posVResV: hist.NewHist2D(prefix+"/res_v-position_v", -posRangeV, posRangeV, bins, -resRange, resRange, bins),
		slopeUResU: hist.NewHist2D(prefix+"/res_u-slope_u", -slopeRange, slopeRange, bins, -resRange, resRange, bins),
		slopeUResV: hist.NewHist2D(prefix+"/res_v-slope_u", -slopeRange, slopeRange, bins, -resRange, resRange, bins),
		slopeVResU: hist.NewHist2D(prefix+"/res_u-slope_v", -slopeRange, slopeRange, bins, -resRange, resRange, bins),
		slopeVResV: hist.NewHist2D(prefix+"/res_v-slope_v", -slopeRange, slopeRange, bins, -resRange, resRange, bins),
	}
}

func (h *sensorResidualHists) fill(state event.TrackState, cluster *event.Cluster) {
	ru := cluster.LocalU - state.Loc0
	rv := cluster.LocalV - state.Loc1

	cluCov := cluster.CovLocalUV()
	stateCov := state.CovOffset()
	sumCov := [2][2]float64{
		{cluCov[0][0] + stateCov[0][0], cluCov[0][1] + stateCov[0][1]},
		{cluCov[1][0] + stateCov[1][0], cluCov[1][1] + stateCov[1][1]},
	}

	h.resU.Fill(ru, 1)
	h.resV.Fill(rv, 1)
	h.resUV.Fill(ru, rv, 1)
	h.resDist.Fill(math.Hypot(ru, rv), 1)
	h.resD2.Fill(mahalanobisSquared2D(sumCov, ru, rv), 1)
	h.posUResU.Fill(state.Loc0, ru, 1)
	h.posUResV.Fill(state.Loc0, rv, 1)
	h.posVResU.Fill(state.Loc1, ru, 1)
	h.posVResV.Fill(state.Loc1, rv, 1)
	h.slopeUResU.Fill(state.SlopeLoc0, ru, 1)
	h.slopeUResV.Fill(state.SlopeLoc0, rv, 1)
	h.slopeVResU.Fill(state.SlopeLoc1, ru, 1)
	h.slopeVResV.Fill(state.SlopeLoc1, rv, 1)
}

// ResidualAnalyzer histograms cluster-track residuals for a configured
// set of sensors, independent of alignment.
type ResidualAnalyzer struct {
	hists map[int32]*sensorResidualHists
}

// NewResidualAnalyzer builds a ResidualAnalyzer. resRangeStd is the
// residual histogram half-range in multiples of each sensor's pixel
// pitch (scaled by hypot(pitchCol, pitchRow)); posRangeU/V and
// slopeRange size the position/slope axes and are used as given.
func NewResidualAnalyzer(sensors []*geometry.Sensor, resRangeStd, posRangeU, posRangeV, slopeRange float64, bins int) *ResidualAnalyzer {
	a := &ResidualAnalyzer{hists: make(map[int32]*sensorResidualHists, len(sensors))}
	for _, s := range sensors {
		resRange := resRangeStd * hypotPitch(s)
		a.hists[s.ID] = newSensorResidualHists(fmt.Sprintf("residuals/%s", s.Name), resRange, posRangeU, posRangeV, slopeRange, bins)
	}
	return a
}

func hypotPitch(s *geometry.Sensor) float64 {
	return math.Hypot(s.PitchCol, s.PitchRow)
}

// Name implements pipeline.Analyzer.
func (a *ResidualAnalyzer) Name() string { return "ResidualAnalyzer" }

// Execute implements pipeline.Analyzer: every in-track cluster on a
// configured sensor, paired with its track's local state, fills that
// sensor's residual histograms.
func (a *ResidualAnalyzer) Execute(ev *event.Event) error {
	for sensorID, h := range a.hists {
		se := ev.SensorEvent(sensorID)
		if se == nil {
			return fmt.Errorf("analyze: sensor %d missing from event", sensorID)
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
			h.fill(state, clu)
		}
	}
	return nil
}

// Finalize implements pipeline.Analyzer; residual histograms need no
// post-processing.
func (a *ResidualAnalyzer) Finalize() error { return nil }

func mahalanobisSquared2D(cov [2][2]float64, dx, dy float64) float64 {
	det := cov[0][0]*cov[1][1] - cov[0][1]*cov[1][0]
	if det == 0 {
		return 0
	}
	inv00 := cov[1][1] / det
	inv01 := -cov[0][1] / det
	inv11 := cov[0][0] / det
	return dx*dx*inv00 + 2*dx*dy*inv01 + dy*dy*inv11
}
