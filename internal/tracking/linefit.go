// Package tracking implements straight-line track finding and fitting.
package tracking

import "github.com/banshee-data/proteusgo/internal/event"

// lineFit2D is a weighted linear regression in two dimensions, the
// Numerical-Recipes-style offset/slope fit used by both the global and
// local track fits.
type lineFit2D struct {
	s, sx, sy, sxx, sxy, syy float64
	cxx float64
}

func (f *lineFit2D) addPoint(x, y, w float64) {
	f.s += w
	f.sx += w * x
	f.sy += w * y
	f.sxx += w * x * x
	f.sxy += w * x * y
	f.syy += w * y * y
}

func (f *lineFit2D) fit() { f.cxx = f.s*f.sxx - f.sx*f.sx }

func (f *lineFit2D) offset() float64 { return (f.sy*f.sxx - f.sx*f.sxy) / f.cxx }
func (f *lineFit2D) slope() float64 { return (f.s*f.sxy - f.sx*f.sy) / f.cxx }
func (f *lineFit2D) varOffset() float64 { return f.sxx / f.cxx }
func (f *lineFit2D) varSlope() float64 { return f.s / f.cxx }
func (f *lineFit2D) covOffsetSlope() float64 { return -f.sx / f.cxx }

func (f *lineFit2D) chi2() float64 {
	return f.syy + (f.sxy*(2*f.sx*f.sy-f.s*f.sxy)-f.sxx*f.sy*f.sy)/f.cxx
}

// lineFit3D fits a line in three dimensions as a function of an
// independent coordinate (global z, or a reference plane's local w),
// running two independent lineFit2D regressions for the two transverse
// coordinates.
type lineFit3D struct {
	loc0, loc1 lineFit2D
}

func (f *lineFit3D) addPoint(indep, depA, depB, wA, wB float64) {
	f.loc0.addPoint(indep, depA, wA)
	f.loc1.addPoint(indep, depB, wB)
}

func (f *lineFit3D) fit() {
	f.loc0.fit()
	f.loc1.fit()
}

func (f *lineFit3D) chi2() float64 { return f.loc0.chi2() + f.loc1.chi2() }

func (f *lineFit3D) state() event.TrackState {
	s := event.NewTrackState()
	s.Loc0, s.SlopeLoc0 = f.loc0.offset(), f.loc0.slope()
	s.Loc1, s.SlopeLoc1 = f.loc1.offset(), f.loc1.slope()
	s.Cov[0][0] = f.loc0.varOffset()
	s.Cov[3][3] = f.loc0.varSlope()
	s.Cov[0][3] = f.loc0.covOffsetSlope()
	s.Cov[3][0] = s.Cov[0][3]
	s.Cov[1][1] = f.loc1.varOffset()
	s.Cov[4][4] = f.loc1.varSlope()
	s.Cov[1][4] = f.loc1.covOffsetSlope()
	s.Cov[4][1] = s.Cov[1][4]
	return s
}
