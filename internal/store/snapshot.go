package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/banshee-data/proteusgo/internal/geometry"
	"gonum.org/v1/gonum/mat"
)

// planeSnapshot is the JSON-serializable form of one geometry.Plane,
// stored one-per-sensor inside a geometrySnapshot's Planes slice.
type planeSnapshot struct {
	SensorID int32 `json:"sensor_id"`
	Origin [3]float64 `json:"origin"`
	Rotation [9]float64 `json:"rotation"` // row-major 3x3
}

// geometrySnapshot is the JSON-serializable form of a geometry.Geometry,
// persisted once per alignment iteration so a run's history can be
// replayed or inspected without re-running alignment.
type geometrySnapshot struct {
	Beam [3]float64 `json:"beam"`
	Planes []planeSnapshot `json:"planes"`
}

// EncodeGeometry renders geo in the same JSON form persisted in
// alignment_iterations.geometry_json, for callers (the `align` and
// `inspect` commands) that need to write a geometry snapshot to a
// plain file rather than a run's history.
func EncodeGeometry(geo *geometry.Geometry) (string, error) { return marshalGeometry(geo) }

// DecodeGeometry is the inverse of EncodeGeometry.
func DecodeGeometry(blob string) (*geometry.Geometry, error) { return unmarshalGeometry(blob) }

// marshalGeometry encodes a Geometry as the JSON blob stored in
// alignment_iterations.geometry_json. Sensor order is sorted so repeated
// snapshots of an unchanged geometry compare byte-for-byte.
func marshalGeometry(geo *geometry.Geometry) (string, error) {
	ids := geo.SensorIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snap := geometrySnapshot{Beam: geo.BeamDirection(), Planes: make([]planeSnapshot, 0, len(ids))}
	for _, id := range ids {
		p := geo.Plane(id)
		var rot [9]float64
		k := 0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rot[k] = p.Rotation.At(i, j)
				k++
			}
		}
		snap.Planes = append(snap.Planes, planeSnapshot{SensorID: p.SensorID, Origin: p.Origin, Rotation: rot})
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("store: marshal geometry snapshot: %w", err)
	}
	return string(b), nil
}

// unmarshalGeometry is the inverse of marshalGeometry. beamCov is always
// nil on the reconstructed Geometry, since the snapshot does not carry
// it: beam covariance is an input to alignment, not an output of it.
func unmarshalGeometry(blob string) (*geometry.Geometry, error) {
	var snap geometrySnapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return nil, fmt.Errorf("store: unmarshal geometry snapshot: %w", err)
	}

	planes := make([]*geometry.Plane, 0, len(snap.Planes))
	for _, ps := range snap.Planes {
		rot := mat.NewDense(3, 3, ps.Rotation[:])
		planes = append(planes, geometry.NewPlane(ps.SensorID, ps.Origin, rot))
	}
	return geometry.NewGeometry(planes, snap.Beam, nil), nil
}

// marshalCorrections encodes a per-sensor correction map as the JSON
// blob stored in alignment_iterations.corrections_json. A nil or empty
// map encodes as the empty string, which AppendIteration stores as a
// SQL NULL.
func marshalCorrections(corrections map[int32][6]float64) (string, error) {
	if len(corrections) == 0 {
		return "", nil
	}
	keyed := make(map[string][6]float64, len(corrections))
	for id, delta := range corrections {
		keyed[fmt.Sprintf("%d", id)] = delta
	}
	b, err := json.Marshal(keyed)
	if err != nil {
		return "", fmt.Errorf("store: marshal corrections: %w", err)
	}
	return string(b), nil
}

// unmarshalCorrections is the inverse of marshalCorrections. An empty
// blob (no corrections recorded for that iteration) returns a nil map.
func unmarshalCorrections(blob string) (map[int32][6]float64, error) {
	if blob == "" {
		return nil, nil
	}
	var keyed map[string][6]float64
	if err := json.Unmarshal([]byte(blob), &keyed); err != nil {
		return nil, fmt.Errorf("store: unmarshal corrections: %w", err)
	}
	out := make(map[int32][6]float64, len(keyed))
	for key, delta := range keyed {
		id, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("store: corrections key %q: %w", key, err)
		}
		out[int32(id)] = delta
	}
	return out, nil
}
