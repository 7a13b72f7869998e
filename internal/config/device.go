// Package config loads the two configuration documents the core
// depends on: DeviceConfig (geometry inputs, required) and RunOptions
// (per-analyzer/per-aligner tunables, optional with documented
// defaults). Both use JSON-backed optional pointer fields with Get*
// accessors and a Validate step run once at load time.
package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/banshee-data/proteusgo/internal/fsutil"
	"github.com/banshee-data/proteusgo/internal/geometry"
	"github.com/banshee-data/proteusgo/internal/teleerr"
)

const maxConfigFileSize = 1 * 1024 * 1024

// fs is the filesystem config documents are read through; overridden in
// tests with fsutil.NewMemoryFileSystem to avoid touching disk.
var fs fsutil.FileSystem = fsutil.OSFileSystem{}

// RegionConfig is the JSON form of a geometry.Region.
type RegionConfig struct {
	Name string `json:"name"`
	ColMin int `json:"col_min"`
	ColMax int `json:"col_max"`
	RowMin int `json:"row_min"`
	RowMax int `json:"row_max"`
}

// SensorConfig is the JSON form of a geometry.Sensor, plus its
// placement in the global frame.
type SensorConfig struct {
	ID int32 `json:"id"`
	Name string `json:"name"`
	Measurement string `json:"measurement"` // "binary", "value", "address_mapped"
	NumCols int `json:"num_cols"`
	NumRows int `json:"num_rows"`
	PitchCol float64 `json:"pitch_col"`
	PitchRow float64 `json:"pitch_row"`
	PitchTimestamp float64 `json:"pitch_timestamp"`
	Thickness float64 `json:"thickness"`
	RadiationLengthFraction float64 `json:"radiation_length_fraction"`
	Regions []RegionConfig `json:"regions,omitempty"`

	// Placement: origin in the global frame and Euler angles (radians,
	// z-y-x convention) describing the plane's rotation.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	OriginZ float64 `json:"origin_z"`
	Alpha float64 `json:"alpha"`
	Beta float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// DeviceConfig is the required geometry document: beam direction and
// the list of sensors with their placement. A device without a beam or
// without sensors makes no sense, so these are plain fields, not
// optional pointers.
type DeviceConfig struct {
	BeamDirection [3]float64 `json:"beam_direction"`
	Sensors []SensorConfig `json:"sensors"`
}

// LoadDeviceConfig reads and validates a DeviceConfig from a JSON file.
func LoadDeviceConfig(path string) (*DeviceConfig, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, teleerr.WrapConfigError(err, "config: parse device config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural requirements that are cheap to catch
// before building geometry.Sensor/Plane values from the document.
func (c *DeviceConfig) Validate() error {
	if len(c.Sensors) == 0 {
		return teleerr.NewConfigError("config: device has no sensors")
	}
	seen := make(map[int32]bool, len(c.Sensors))
	for _, s := range c.Sensors {
		if seen[s.ID] {
			return teleerr.NewConfigError("config: duplicate sensor id %d", s.ID)
		}
		seen[s.ID] = true
		if s.NumCols <= 0 || s.NumRows <= 0 {
			return teleerr.NewConfigError("config: sensor %q has non-positive dimensions", s.Name)
		}
	}
	return nil
}

func measurementFromString(s string) geometry.Measurement {
	switch s {
	case "value":		return geometry.MeasurementValue
	case "address_mapped":		return geometry.MeasurementAddressMapped
	default:		return geometry.MeasurementBinary
	}
}

// BuildSensor converts a SensorConfig into a geometry.Sensor.
func (s *SensorConfig) BuildSensor() (*geometry.Sensor, error) {
	regions := make([]geometry.Region, len(s.Regions))
	for i, r := range s.Regions {
		regions[i] = geometry.Region{Name: r.Name, ColMin: r.ColMin, ColMax: r.ColMax, RowMin: r.RowMin, RowMax: r.RowMax}
	}
	return geometry.NewSensor(s.ID, s.Name, measurementFromString(s.Measurement),
		s.NumCols, s.NumRows, s.PitchCol, s.PitchRow, s.PitchTimestamp,
		s.Thickness, s.RadiationLengthFraction, regions)
}

// BuildGeometry constructs a full geometry.Geometry from the document,
// placing each sensor's plane per its configured origin and Euler
// angles.
func (c *DeviceConfig) BuildGeometry() (*geometry.Geometry, error) {
	planes := make([]*geometry.Plane, 0, len(c.Sensors))
	for _, sc := range c.Sensors {
		sensor, err := sc.BuildSensor()
		if err != nil {
			return nil, err
		}
		origin := [3]float64{sc.OriginX, sc.OriginY, sc.OriginZ}
		planes = append(planes, geometry.NewPlaneFromEuler(sensor.ID, origin, sc.Alpha, sc.Beta, sc.Gamma))
	}
	return geometry.NewGeometry(planes, c.BeamDirection, nil), nil
}

// BuildSensors returns the geometry.Sensor for every configured sensor,
// in document order, alongside BuildGeometry's Plane-only view.
func (c *DeviceConfig) BuildSensors() ([]*geometry.Sensor, error) {
	sensors := make([]*geometry.Sensor, 0, len(c.Sensors))
	for _, sc := range c.Sensors {
		s, err := sc.BuildSensor()
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

func readConfigFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, teleerr.NewConfigError("config: file %s must have .json extension", cleanPath)
	}
	info, err := fs.Stat(cleanPath)
	if err != nil {
		return nil, teleerr.WrapConfigError(err, "config: stat %s", cleanPath)
	}
	if info.Size() > maxConfigFileSize {
		return nil, teleerr.NewConfigError("config: %s too large (%d bytes, max %d)", cleanPath, info.Size(), maxConfigFileSize)
	}
	data, err := fs.ReadFile(cleanPath)
	if err != nil {
		return nil, teleerr.WrapConfigError(err, "config: read %s", cleanPath)
	}
	return data, nil
}
