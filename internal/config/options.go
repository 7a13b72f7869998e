package config

import (
	"encoding/json"

	"github.com/banshee-data/proteusgo/internal/teleerr"
)

// RunOptions is the per-analyzer/per-aligner tunables table.
// Every field is an optional pointer so a partial JSON document leaves
// the rest at their documented defaults.
type RunOptions struct {
	Neighbors *int `json:"neighbors,omitempty"`
	Damping *float64 `json:"damping,omitempty"`
	PixelRange *float64 `json:"pixel_range,omitempty"`
	GammaRange *float64 `json:"gamma_range,omitempty"`
	Bins *int `json:"bins,omitempty"`
	NumClustersMin *int `json:"num_clusters_min,omitempty"`
	SearchSigmaMax *float64 `json:"search_sigma_max,omitempty"`
	ReducedChi2Max *float64 `json:"reduced_chi2_max,omitempty"`
	DistanceSigmaMax *float64 `json:"distance_sigma_max,omitempty"`
	MaskedPixelRange *int `json:"masked_pixel_range,omitempty"`
	InPixelPeriod *float64 `json:"in_pixel_period,omitempty"`
	InPixelBinsMin *int `json:"in_pixel_bins_min,omitempty"`
}

// EmptyRunOptions returns a RunOptions with every field nil; every Get*
// accessor then falls back to its documented default.
func EmptyRunOptions() *RunOptions { return &RunOptions{} }

// LoadRunOptions reads and validates a RunOptions document.
func LoadRunOptions(path string) (*RunOptions, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	opts := EmptyRunOptions()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, teleerr.WrapConfigError(err, "config: parse run options %s", path)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks the structural constraints that make a RunOptions
// document a configuration error.
func (o *RunOptions) Validate() error {
	if o.Neighbors != nil && *o.Neighbors < 1 {
		return teleerr.NewConfigError("config: neighbors must be >= 1, got %d", *o.Neighbors)
	}
	if o.Damping != nil && (*o.Damping <= 0 || *o.Damping > 1) {
		return teleerr.NewConfigError("config: damping must be in (0, 1], got %f", *o.Damping)
	}
	if o.Bins != nil && *o.Bins <= 0 {
		return teleerr.NewConfigError("config: bins must be positive, got %d", *o.Bins)
	}
	if o.NumClustersMin != nil && *o.NumClustersMin < 1 {
		return teleerr.NewConfigError("config: num_clusters_min must be >= 1, got %d", *o.NumClustersMin)
	}
	if o.InPixelBinsMin != nil && *o.InPixelBinsMin < 1 {
		return teleerr.NewConfigError("config: in_pixel_bins_min must be >= 1, got %d", *o.InPixelBinsMin)
	}
	return nil
}

// GetNeighbors returns the neighbors option or its default.
func (o *RunOptions) GetNeighbors() int {
	if o.Neighbors == nil {
		return 1
	}
	return *o.Neighbors
}

// GetDamping returns the damping option or its default.
func (o *RunOptions) GetDamping() float64 {
	if o.Damping == nil {
		return 0.5
	}
	return *o.Damping
}

// GetPixelRange returns the residual aligner's histogram half-range in
// multiples of pixel pitch, or its default.
func (o *RunOptions) GetPixelRange() float64 {
	if o.PixelRange == nil {
		return 5.0
	}
	return *o.PixelRange
}

// GetGammaRange returns the residual aligner's gamma histogram
// half-range in radians, or its default.
func (o *RunOptions) GetGammaRange() float64 {
	if o.GammaRange == nil {
		return 0.01
	}
	return *o.GammaRange
}

// GetBins returns the histogram bin count, or its default.
func (o *RunOptions) GetBins() int {
	if o.Bins == nil {
		return 100
	}
	return *o.Bins
}

// GetNumClustersMin returns the track finder's minimum clusters per
// track, or its default.
func (o *RunOptions) GetNumClustersMin() int {
	if o.NumClustersMin == nil {
		return 3
	}
	return *o.NumClustersMin
}

// GetSearchSigmaMax returns the track finder's Mahalanobis cut, or its
// default. A negative value disables the cut.
func (o *RunOptions) GetSearchSigmaMax() float64 {
	if o.SearchSigmaMax == nil {
		return -1
	}
	return *o.SearchSigmaMax
}

// GetReducedChi2Max returns the track finder's selection cut, or its
// default. A negative value disables the cut.
func (o *RunOptions) GetReducedChi2Max() float64 {
	if o.ReducedChi2Max == nil {
		return -1
	}
	return *o.ReducedChi2Max
}

// GetDistanceSigmaMax returns the matcher's Mahalanobis cut, or its
// default. A negative value disables the cut.
func (o *RunOptions) GetDistanceSigmaMax() float64 {
	if o.DistanceSigmaMax == nil {
		return -1
	}
	return *o.DistanceSigmaMax
}

// GetMaskedPixelRange returns the efficiency analyzer's masked-pixel
// range (the mask is protruded by this value minus one; 0 disables the
// veto), or its default.
func (o *RunOptions) GetMaskedPixelRange() int {
	if o.MaskedPixelRange == nil {
		return 1
	}
	return *o.MaskedPixelRange
}

// GetInPixelPeriod returns the efficiency analyzer's folding period in
// pixels, or its default.
func (o *RunOptions) GetInPixelPeriod() float64 {
	if o.InPixelPeriod == nil {
		return 1.0
	}
	return *o.InPixelPeriod
}

// GetInPixelBinsMin returns the efficiency analyzer's minimum bins
// along the shorter axis, or its default.
func (o *RunOptions) GetInPixelBinsMin() int {
	if o.InPixelBinsMin == nil {
		return 2
	}
	return *o.InPixelBinsMin
}
