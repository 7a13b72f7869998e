package main

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/config"
	"github.com/banshee-data/proteusgo/internal/event"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry() *geometry.Geometry {
	p0 := geometry.IdentityPlane(0, [3]float64{0, 0, 0})
	p1 := geometry.IdentityPlane(1, [3]float64{0, 0, 100})
	return geometry.NewGeometry([]*geometry.Plane{p0, p1}, [3]float64{0, 0, 1}, nil)
}

func testSensors(t *testing.T) []*geometry.Sensor {
	t.Helper()
	s0, err := geometry.NewSensor(0, "plane0", geometry.MeasurementBinary, 100, 100, 1e-5, 1e-5, 1, 1e-4, 0.01, nil)
	require.NoError(t, err)
	s1, err := geometry.NewSensor(1, "plane1", geometry.MeasurementBinary, 100, 100, 1e-5, 1e-5, 1, 1e-4, 0.01, nil)
	require.NoError(t, err)
	return []*geometry.Sensor{s0, s1}
}

func TestSensorIDsInDocumentOrder(t *testing.T) {
	device := &config.DeviceConfig{Sensors: []config.SensorConfig{{ID: 3}, {ID: 1}, {ID: 2}}}
	assert.Equal(t, []int32{3, 1, 2}, sensorIDs(device))
}

func TestInt64SliceToInt32(t *testing.T) {
	assert.Equal(t, []int32{1, 2, 3}, int64SliceToInt32([]int64{1, 2, 3}))
	assert.Empty(t, int64SliceToInt32(nil))
}

func TestFilterSensorsEmptyIDsKeepsAll(t *testing.T) {
	sensors := testSensors(t)
	assert.Equal(t, sensors, filterSensors(sensors, nil))
}

func TestFilterSensorsSelectsAndOrdersByIDs(t *testing.T) {
	sensors := testSensors(t)
	got := filterSensors(sensors, []int32{1})
	require.Len(t, got, 1)
	assert.Equal(t, int32(1), got[0].ID)
}

func TestBuildAlignerLocalChi2DefaultsToAllSensors(t *testing.T) {
	geo := testGeometry()
	al, effective, err := buildAligner("local-chi2", geo, testSensors(t), []int32{0, 1}, nil, 0, false, config.EmptyRunOptions(), 2.0)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, effective)
	assert.Equal(t, "LocalChi2Aligner", al.Name())
}

func TestBuildAlignerCorrelationRequiresFixedSensor(t *testing.T) {
	geo := testGeometry()
	_, _, err := buildAligner("correlation", geo, testSensors(t), []int32{0, 1}, []int32{1}, 0, false, config.EmptyRunOptions(), 2.0)
	assert.Error(t, err)
}

func TestBuildAlignerUnknownName(t *testing.T) {
	geo := testGeometry()
	_, _, err := buildAligner("bogus", geo, testSensors(t), []int32{0, 1}, nil, 0, false, config.EmptyRunOptions(), 2.0)
	assert.Error(t, err)
}

func TestDiffCorrectionsCapturesOriginDelta(t *testing.T) {
	before := testGeometry()
	after := testGeometry()
	after.Plane(1).Origin[2] += 0.01

	diff := diffCorrections(before, after, []int32{0, 1})
	assert.Equal(t, [6]float64{0, 0, 0, 0, 0, 0}, diff[0])
	assert.InDelta(t, 0.01, diff[1][2], 1e-12)
}

func TestChi2TrackerAccumulatesAcrossTracks(t *testing.T) {
	tracker := &chi2Tracker{}
	ev := event.NewEvent([]int32{0, 1})
	ev.Tracks = []event.Track{{Chi2: 1.5, Dof: 2}, {Chi2: 2.5, Dof: 3}}

	require.NoError(t, tracker.Execute(ev))
	require.NoError(t, tracker.Finalize())

	assert.InDelta(t, 4.0, tracker.sumChi2, 1e-12)
	assert.Equal(t, int64(5), tracker.sumDof)
	assert.Equal(t, int64(2), tracker.numTracks)
}
