package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Plane is a sensor's placement in the global coordinate system: an
// origin and an orthonormal 3x3 rotation from local (u,v,w) to global
// (x,y,z). Rotation orthonormality is an invariant maintained by every
// mutator in this file (‖RᵀR − I‖ < 1e-10).
type Plane struct {
	SensorID int32
	Origin [3]float64
	Rotation *mat.Dense // 3x3, orthonormal
}

// NewPlane builds a Plane from an origin and rotation. The rotation is
// copied defensively.
func NewPlane(sensorID int32, origin [3]float64, rotation *mat.Dense) *Plane {
	r := mat.NewDense(3, 3, nil)
	r.Clone(rotation)
	return &Plane{SensorID: sensorID, Origin: origin, Rotation: r}
}

// IdentityPlane returns a plane at the given origin with identity
// rotation (local axes aligned with global axes).
func IdentityPlane(sensorID int32, origin [3]float64) *Plane {
	return NewPlane(sensorID, origin, identity3())
}

// NewPlaneFromEuler builds a Plane at the given origin whose rotation
// is Rot_zyx(gamma, beta, alpha), the same z-y-x convention used by
// CorrectLocal. Used when placement comes from a configuration document
// that describes orientation as three Euler angles rather than a
// rotation matrix.
func NewPlaneFromEuler(sensorID int32, origin [3]float64, alpha, beta, gamma float64) *Plane {
	return NewPlane(sensorID, origin, rotZYX(alpha, beta, gamma))
}

func identity3() *mat.Dense {
	r := mat.NewDense(3, 3, nil)
	r.Set(0, 0, 1)
	r.Set(1, 1, 1)
	r.Set(2, 2, 1)
	return r
}

// OrthonormalityResidual computes ‖RᵀR − I‖_F, the Frobenius norm used
// to check that Rotation stays orthonormal across corrections.
func (p *Plane) OrthonormalityResidual() float64 {
	var rtr mat.Dense
	rtr.Mul(p.Rotation.T(), p.Rotation)
	var diff mat.Dense
	diff.Sub(&rtr, identity3())
	return mat.Norm(&diff, 2)
}

// LocalToGlobal maps a local-frame point (u,v,w) to global (x,y,z).
func (p *Plane) LocalToGlobal(u, v, w float64) (x, y, z float64) {
	local := mat.NewVecDense(3, []float64{u, v, w})
	var global mat.VecDense
	global.MulVec(p.Rotation, local)
	return p.Origin[0] + global.AtVec(0), p.Origin[1] + global.AtVec(1), p.Origin[2] + global.AtVec(2)
}

// GlobalToLocal maps a global-frame point (x,y,z) to local (u,v,w), the
// inverse of LocalToGlobal. Because Rotation is orthonormal its inverse
// is its transpose.
func (p *Plane) GlobalToLocal(x, y, z float64) (u, v, w float64) {
	d := mat.NewVecDense(3, []float64{x - p.Origin[0], y - p.Origin[1], z - p.Origin[2]})
	var local mat.VecDense
	local.MulVec(p.Rotation.T(), d)
	return local.AtVec(0), local.AtVec(1), local.AtVec(2)
}

// Normal returns the plane's unit normal in global coordinates, the
// third column of the rotation matrix (the local w axis).
func (p *Plane) Normal() [3]float64 {
	return [3]float64{p.Rotation.At(0, 2), p.Rotation.At(1, 2), p.Rotation.At(2, 2)}
}

// rotZYX builds the small-angle rotation Rot_zyx(gamma, beta, alpha) used
// by CorrectLocal, matching the sign convention required by the local
// chi² aligner's Jacobian.
func rotZYX(alpha, beta, gamma float64) *mat.Dense {
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	cb, sb := math.Cos(beta), math.Sin(beta)
	cg, sg := math.Cos(gamma), math.Sin(gamma)

	rz := mat.NewDense(3, 3, []float64{
		cg, -sg, 0,
		sg, cg, 0,
		0, 0, 1,
	})
	ry := mat.NewDense(3, 3, []float64{
		cb, 0, sb,
		0, 1, 0,
		-sb, 0, cb,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, ca, -sa,
		0, sa, ca,
	})

	var zy mat.Dense
	zy.Mul(rz, ry)
	var zyx mat.Dense
	zyx.Mul(&zy, rx)
	return &zyx
}

// CorrectLocal applies a six-parameter local correction
// (du, dv, dw, dalpha, dbeta, dgamma) as an additive translation in the
// plane's own local frame plus a small-angle rotation composed on the
// right of the current rotation: R <- R . Rot_zyx(gamma, beta, alpha).
func (p *Plane) CorrectLocal(du, dv, dw, dalpha, dbeta, dgamma float64) {
	// translation is expressed in local coordinates; rotate into global
	// before adding to the origin.
	gx, gy, gz := p.LocalToGlobal(du, dv, dw)
	ox, oy, oz := p.LocalToGlobal(0, 0, 0)
	p.Origin[0] += gx - ox
	p.Origin[1] += gy - oy
	p.Origin[2] += gz - oz

	var corrected mat.Dense
	corrected.Mul(p.Rotation, rotZYX(dalpha, dbeta, dgamma))
	p.Rotation = &corrected
}

// CorrectGlobalOffset applies an additive translation directly in
// global coordinates, used by the correlation aligner.
func (p *Plane) CorrectGlobalOffset(dx, dy, dz float64) {
	p.Origin[0] += dx
	p.Origin[1] += dy
	p.Origin[2] += dz
}

// CovLocalToGlobalXY projects a cluster's local (u,v) 2x2 covariance
// into the global frame and returns the (x,y) 2x2 sub-block.
func (p *Plane) CovLocalToGlobalXY(covUV [2][2]float64) [2][2]float64 {
	rotSub := p.rotationUV()
	cov := mat.NewDense(2, 2, []float64{covUV[0][0], covUV[0][1], covUV[1][0], covUV[1][1]})
	var tmp, full mat.Dense
	tmp.Mul(rotSub, cov)
	full.Mul(&tmp, rotSub.T())
	return [2][2]float64{
		{full.At(0, 0), full.At(0, 1)},
		{full.At(1, 0), full.At(1, 1)},
	}
}

// rotationUV returns the 3x2 sub-matrix of Rotation spanning the local
// u,v axes (columns 0 and 1).
func (p *Plane) rotationUV() *mat.Dense {
	return mat.NewDense(3, 2, []float64{
		p.Rotation.At(0, 0), p.Rotation.At(0, 1),
		p.Rotation.At(1, 0), p.Rotation.At(1, 1),
		p.Rotation.At(2, 0), p.Rotation.At(2, 1),
	})
}

// TransformLocalToLocal reprojects a cluster's local (u,v) position and
// 2x2 covariance, defined on source's plane, into target's local frame.
// The returned (tu, tv, tw) is the position in target's local frame and
// (varU, varV) is the diagonal of the covariance projected into that
// frame, used by the track fitter's local/unbiased fit.
func TransformLocalToLocal(source, target *Plane, u, v float64, covUV [2][2]float64) (tu, tv, tw, varU, varV float64) {
	x, y, z := source.LocalToGlobal(u, v, 0)
	tu, tv, tw = target.GlobalToLocal(x, y, z)

	var m, tmp, full mat.Dense
	m.Mul(target.Rotation.T(), source.rotationUV())
	cov := mat.NewDense(2, 2, []float64{covUV[0][0], covUV[0][1], covUV[1][0], covUV[1][1]})
	tmp.Mul(&m, cov)
	full.Mul(&tmp, m.T())
	return tu, tv, tw, full.At(0, 0), full.At(1, 1)
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	r := mat.NewDense(3, 3, nil)
	r.Clone(p.Rotation)
	return &Plane{SensorID: p.SensorID, Origin: p.Origin, Rotation: r}
}
