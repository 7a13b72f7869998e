// Package geometry holds the plane definitions, beam axis, and
// local<->global transforms consumed by tracking and alignment.
// Geometry and Sensor are read-only during an event loop; alignment
// produces a fresh Geometry value after each iteration.
package geometry

import (
	"sort"

	"github.com/banshee-data/proteusgo/internal/teleerr"
	"gonum.org/v1/gonum/mat"
)

// Geometry is the full telescope placement: one Plane per sensor plus
// the global beam direction and its covariance.
type Geometry struct {
	planes map[int32]*Plane
	beam [3]float64 // unit vector
	beamCov *mat.Dense // 3x3 covariance of the beam direction
}

// NewGeometry builds a Geometry from planes and a beam direction, which
// is normalized to unit length. beamCov may be nil (treated as zero).
func NewGeometry(planes []*Plane, beam [3]float64, beamCov *mat.Dense) *Geometry {
	n := norm3(beam)
	if n == 0 {
		n = 1
	}
	g := &Geometry{
		planes: make(map[int32]*Plane, len(planes)),
		beam: [3]float64{beam[0] / n, beam[1] / n, beam[2] / n},
		beamCov: beamCov,
	}
	for _, p := range planes {
		g.planes[p.SensorID] = p
	}
	return g
}

func norm3(v [3]float64) float64 {
	return mat.Norm(mat.NewVecDense(3, v[:]), 2)
}

// Plane returns the plane for a sensor, or nil if unknown.
func (g *Geometry) Plane(sensorID int32) *Plane {
	return g.planes[sensorID]
}

// BeamDirection returns the unit beam direction in global coordinates.
func (g *Geometry) BeamDirection() [3]float64 {
	return g.beam
}

// BeamSlopeInLocal projects the beam direction into the local u/v slope
// of the given sensor's plane: the local w-component is used to
// normalize the u,v components so that the result is du/dw, dv/dw.
func (g *Geometry) BeamSlopeInLocal(sensorID int32) (slopeU, slopeV float64, ok bool) {
	p := g.Plane(sensorID)
	if p == nil {
		return 0, 0, false
	}
	u, v, w := p.GlobalToLocal(g.beam[0]+p.Origin[0], g.beam[1]+p.Origin[1], g.beam[2]+p.Origin[2])
	if w == 0 {
		return 0, 0, false
	}
	return u / w, v / w, true
}

// LocalToGlobal transforms a local-frame point on the named sensor's
// plane into global coordinates.
func (g *Geometry) LocalToGlobal(sensorID int32, u, v, w float64) (x, y, z float64, ok bool) {
	p := g.Plane(sensorID)
	if p == nil {
		return 0, 0, 0, false
	}
	x, y, z = p.LocalToGlobal(u, v, w)
	return x, y, z, true
}

// GlobalToLocal is the inverse of LocalToGlobal.
func (g *Geometry) GlobalToLocal(sensorID int32, x, y, z float64) (u, v, w float64, ok bool) {
	p := g.Plane(sensorID)
	if p == nil {
		return 0, 0, 0, false
	}
	u, v, w = p.GlobalToLocal(x, y, z)
	return u, v, w, true
}

// SortedAlongBeam stably sorts sensorIDs by the dot product of each
// plane's offset with the beam direction. Used by the track finder to
// order sensors, and by the correlation aligner to split sensors into
// backward/forward lists relative to a fixed sensor.
func (g *Geometry) SortedAlongBeam(sensorIDs []int32) []int32 {
	out := make([]int32, len(sensorIDs))
	copy(out, sensorIDs)
	key := func(id int32) float64 {
		p := g.Plane(id)
		if p == nil {
			return 0
		}
		return p.Origin[0]*g.beam[0] + p.Origin[1]*g.beam[1] + p.Origin[2]*g.beam[2]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]) < key(out[j])
	})
	return out
}

// CorrectGlobalOffset applies an additive global translation to one
// sensor's plane.
func (g *Geometry) CorrectGlobalOffset(sensorID int32, dx, dy, dz float64) error {
	p := g.Plane(sensorID)
	if p == nil {
		return teleerr.NewConfigError("geometry: unknown sensor %d", sensorID)
	}
	p.CorrectGlobalOffset(dx, dy, dz)
	return nil
}

// CorrectLocal applies a six-parameter local correction to one sensor's
// plane. cov is accepted for API symmetry with aligners that track a
// correction covariance but is not otherwise consumed — it is the
// caller's record of uncertainty.
func (g *Geometry) CorrectLocal(sensorID int32, delta [6]float64, cov *mat.Dense) error {
	p := g.Plane(sensorID)
	if p == nil {
		return teleerr.NewConfigError("geometry: unknown sensor %d", sensorID)
	}
	p.CorrectLocal(delta[0], delta[1], delta[2], delta[3], delta[4], delta[5])
	return nil
}

// Clone returns a deep copy of the geometry, used by alignment to
// produce a fresh immutable value at the end of each iteration.
func (g *Geometry) Clone() *Geometry {
	planes := make([]*Plane, 0, len(g.planes))
	for _, p := range g.planes {
		planes = append(planes, p.Clone())
	}
	var covClone *mat.Dense
	if g.beamCov != nil {
		covClone = mat.NewDense(3, 3, nil)
		covClone.Clone(g.beamCov)
	}
	return NewGeometry(planes, g.beam, covClone)
}

// SensorIDs returns all sensor IDs with a defined plane, in unspecified
// order.
func (g *Geometry) SensorIDs() []int32 {
	out := make([]int32, 0, len(g.planes))
	for id := range g.planes {
		out = append(out, id)
	}
	return out
}
