package geometry

import (
	"fmt"
	"math"

	"github.com/banshee-data/proteusgo/internal/teleerr"
)

// Measurement is the pixel measurement kind of a sensor.
type Measurement int

const (
	// MeasurementBinary is a generic binary pixel detector (hit/no-hit).
	MeasurementBinary Measurement = iota
	// MeasurementValue is a pixel detector reporting a per-hit value
	// (time-over-threshold or similar analog readout).
	MeasurementValue
	// MeasurementAddressMapped is a sensor whose digital address is
	// remapped to a physical address (e.g. an HV-CMOS chip with
	// non-trivial pixel addressing).
	MeasurementAddressMapped
)

func (m Measurement) String() string {
	switch m {
	case MeasurementBinary:		return "binary"
	case MeasurementValue:		return "value"
	case MeasurementAddressMapped:		return "address_mapped"
	default:		return "unknown"
	}
}

// Region is a named rectangular sub-area of a sensor's pixel matrix,
// given in digital column/row indices, inclusive of ColMin/RowMin and
// exclusive of ColMax/RowMax.
type Region struct {
	Name string
	ColMin, ColMax int
	RowMin, RowMax int
}

func (r Region) contains(col, row int) bool {
	return r.ColMin <= col && col < r.ColMax && r.RowMin <= row && row < r.RowMax
}

func (r Region) overlaps(o Region) bool {
	if r.ColMax <= o.ColMin || o.ColMax <= r.ColMin {
		return false
	}
	if r.RowMax <= o.RowMin || o.RowMax <= r.RowMin {
		return false
	}
	return true
}

// Sensor is the immutable per-run descriptor for one plane of the
// telescope. It is never mutated after configuration; its regions are
// fixed at construction and the dense pixel mask is installed by
// SetMask during configuration.
type Sensor struct {
	ID int32
	Name string
	Measurement Measurement
	NumCols int
	NumRows int
	PitchCol float64 // metres
	PitchRow float64 // metres
	PitchTimestamp float64 // seconds per timestamp tick
	Thickness float64 // metres
	RadiationLengthFraction float64 // x/X0

	Regions []Region

	// mask[row*NumCols+col] is true when the pixel is usable. A nil mask
	// means every pixel is usable.
	mask []bool
}

// NewSensor constructs a Sensor with every pixel unmasked and validates
// its regions. Region overlap or duplicate names are configuration
// errors.
func NewSensor(id int32, name string, measurement Measurement, numCols, numRows int,
	pitchCol, pitchRow, pitchTimestamp, thickness, radiationLengthFraction float64,
	regions []Region) (*Sensor, error) {

	if numCols <= 0 || numRows <= 0 {
		return nil, teleerr.NewConfigError("sensor %q: numCols/numRows must be positive, got %d/%d", name, numCols, numRows)
	}
	if pitchCol <= 0 || pitchRow <= 0 {
		return nil, teleerr.NewConfigError("sensor %q: pitchCol/pitchRow must be positive", name)
	}

	seen := make(map[string]bool, len(regions))
	for i, r := range regions {
		if seen[r.Name] {
			return nil, teleerr.NewConfigError("sensor %q: duplicate region name %q", name, r.Name)
		}
		seen[r.Name] = true
		for j := i + 1; j < len(regions); j++ {
			if r.overlaps(regions[j]) {
				return nil, teleerr.NewConfigError("sensor %q: regions %q and %q overlap", name, r.Name, regions[j].Name)
			}
		}
	}

	return &Sensor{
		ID: id,
		Name: name,
		Measurement: measurement,
		NumCols: numCols,
		NumRows: numRows,
		PitchCol: pitchCol,
		PitchRow: pitchRow,
		PitchTimestamp: pitchTimestamp,
		Thickness: thickness,
		RadiationLengthFraction: radiationLengthFraction,
		Regions: regions,
	}, nil
}

// SetMask installs a dense pixel mask; mask must have NumCols*NumRows
// entries in row-major order. Panics on length mismatch since this is a
// programmer/configuration error, never reachable with per-event data.
func (s *Sensor) SetMask(mask []bool) {
	if len(mask) != s.NumCols*s.NumRows {
		panic(fmt.Sprintf("sensor %q: mask length %d != %d", s.Name, len(mask), s.NumCols*s.NumRows))
	}
	s.mask = mask
}

// IsMasked reports whether the given pixel is masked out (unusable).
// Pixels outside the sensor area are always masked.
func (s *Sensor) IsMasked(col, row int) bool {
	if col < 0 || row < 0 || col >= s.NumCols || row >= s.NumRows {
		return true
	}
	if s.mask == nil {
		return false
	}
	return !s.mask[row*s.NumCols+col]
}

// RegionOf returns the index into s.Regions that contains (col,row), or
// -1 if no region claims it.
func (s *Sensor) RegionOf(col, row int) int {
	for i, r := range s.Regions {
		if r.contains(col, row) {
			return i
		}
	}
	return -1
}

// ColOrigin and RowOrigin give the local-frame origin in pixel index
// units: the center of pixel (round(numCols/2), round(numRows/2)) is
// the local origin.
func (s *Sensor) ColOrigin() float64 { return float64(roundHalfAwayFromZero(float64(s.NumCols) / 2)) }
func (s *Sensor) RowOrigin() float64 { return float64(roundHalfAwayFromZero(float64(s.NumRows) / 2)) }

func roundHalfAwayFromZero(x float64) int {
	if x < 0 {
		return -int(-x + 0.5)
	}
	return int(x + 0.5)
}

// PixelToLocal converts a fractional pixel-coordinate (col, row) to the
// sensor's local (u, v) metric coordinates using the sensitive-area
// centering convention.
func (s *Sensor) PixelToLocal(col, row float64) (u, v float64) {
	u = (col - s.ColOrigin()) * s.PitchCol
	v = (row - s.RowOrigin()) * s.PitchRow
	return u, v
}

// LocalToPixel is the inverse of PixelToLocal.
func (s *Sensor) LocalToPixel(u, v float64) (col, row float64) {
	col = u/s.PitchCol + s.ColOrigin()
	row = v/s.PitchRow + s.RowOrigin()
	return col, row
}

// IsMaskedOutset reports whether the nearest pixel to (col, row) is
// masked, or lies within outset pixels (in either column or row) of a
// masked pixel — the dilated-mask veto used by the efficiency analyzer
// to exclude tracks near dead regions.
func (s *Sensor) IsMaskedOutset(col, row float64, outset int) bool {
	ic, ir := int(math.Round(col)), int(math.Round(row))
	if outset <= 0 {
		return s.IsMasked(ic, ir)
	}
	for dc := -outset; dc <= outset; dc++ {
		for dr := -outset; dr <= outset; dr++ {
			if s.IsMasked(ic+dc, ir+dr) {
				return true
			}
		}
	}
	return false
}
