package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical map defaults file.
const DefaultConfigPath = "config/dustmap.defaults.json"

// MapConfig holds the map-making parameters. Every field is optional; the
// Get* accessors supply the default for anything left unset, so partial
// files are safe.
type MapConfig struct {
	// Pixelization
	Nside  *int64 `json:"nside,omitempty"`
	Nested *bool  `json:"nested,omitempty"`

	// Evaluation
	DistanceModulus *float64  `json:"distance_modulus,omitempty"`
	Reducer         *string   `json:"reducer,omitempty"` // mean, median or percentile
	Percentiles     []float64 `json:"percentiles,omitempty"`

	// Rasterization
	Oversample           *float64 `json:"oversample,omitempty"`
	Lookup               *string  `json:"lookup,omitempty"` // auto, dense or hash
	DenseLookupMaxPixels *int64   `json:"dense_lookup_max_pixels,omitempty"`
	Workers              *int     `json:"workers,omitempty"`

	// Distance profile
	ProfileMuMin *float64 `json:"profile_mu_min,omitempty"`
	ProfileMuMax *float64 `json:"profile_mu_max,omitempty"`
	ProfileSteps *int     `json:"profile_steps,omitempty"`

	// Output
	ImageWidthIn  *float64 `json:"image_width_in,omitempty"`
	ImageHeightIn *float64 `json:"image_height_in,omitempty"`

	// Inference program
	BayestarBinary *string  `json:"bayestar_binary,omitempty"`
	BayestarArgs   []string `json:"bayestar_args,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyMapConfig returns a MapConfig with all fields unset.
func EmptyMapConfig() *MapConfig {
	return &MapConfig{}
}

// DefaultMapConfig returns a MapConfig with every field set to its default.
func DefaultMapConfig() *MapConfig {
	return &MapConfig{
		Nside:                ptrInt64(defaultNside),
		Nested:               ptrBool(true),
		DistanceModulus:      ptrFloat64(9.0),
		Reducer:              ptrString("mean"),
		Percentiles:          append([]float64(nil), defaultPercentiles...),
		Oversample:           ptrFloat64(3),
		Lookup:               ptrString("auto"),
		DenseLookupMaxPixels: ptrInt64(defaultDenseLookupMaxPixels),
		Workers:              ptrInt(4),
		ProfileMuMin:         ptrFloat64(5),
		ProfileMuMax:         ptrFloat64(15),
		ProfileSteps:         ptrInt(100),
		ImageWidthIn:         ptrFloat64(5),
		ImageHeightIn:        ptrFloat64(5),
		BayestarArgs:         append([]string(nil), defaultBayestarArgs...),
	}
}

const (
	defaultNside                = 512
	defaultDenseLookupMaxPixels = 12 * 2048 * 2048
)

var (
	defaultPercentiles  = []float64{5, 25, 75, 95}
	defaultBayestarArgs = []string{
		"--save-surfs",
		"--star-steps", "350",
		"--star-samplers", "50",
		"--star-p-replacement", "0.2",
		"--clouds", "0",
		"--regions", "0",
	}
)

// LoadMapConfig loads a MapConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadMapConfig(path string) (*MapConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyMapConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *MapConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadMapConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *MapConfig) Validate() error {
	if c.Nside != nil {
		n := *c.Nside
		if n < 1 {
			return fmt.Errorf("nside must be positive, got %d", n)
		}
		if c.GetNested() && n&(n-1) != 0 {
			return fmt.Errorf("nside must be a power of two for nested ordering, got %d", n)
		}
	}

	if c.Reducer != nil {
		switch strings.ToLower(*c.Reducer) {
		case "mean", "median", "percentile":
		default:
			return fmt.Errorf("reducer must be mean, median or percentile, got %q", *c.Reducer)
		}
	}

	for _, p := range c.Percentiles {
		if p < 0 || p > 100 {
			return fmt.Errorf("percentiles must be between 0 and 100, got %f", p)
		}
	}

	if c.Oversample != nil && *c.Oversample <= 0 {
		return fmt.Errorf("oversample must be positive, got %f", *c.Oversample)
	}

	if c.Lookup != nil {
		switch strings.ToLower(*c.Lookup) {
		case "auto", "dense", "hash":
		default:
			return fmt.Errorf("lookup must be auto, dense or hash, got %q", *c.Lookup)
		}
	}

	if c.DenseLookupMaxPixels != nil && *c.DenseLookupMaxPixels < 0 {
		return fmt.Errorf("dense_lookup_max_pixels must be non-negative, got %d", *c.DenseLookupMaxPixels)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.GetProfileMuMax() <= c.GetProfileMuMin() {
		return fmt.Errorf("profile_mu_max (%f) must exceed profile_mu_min (%f)", c.GetProfileMuMax(), c.GetProfileMuMin())
	}
	if c.ProfileSteps != nil && *c.ProfileSteps < 2 {
		return fmt.Errorf("profile_steps must be at least 2, got %d", *c.ProfileSteps)
	}

	if c.ImageWidthIn != nil && *c.ImageWidthIn <= 0 {
		return fmt.Errorf("image_width_in must be positive, got %f", *c.ImageWidthIn)
	}
	if c.ImageHeightIn != nil && *c.ImageHeightIn <= 0 {
		return fmt.Errorf("image_height_in must be positive, got %f", *c.ImageHeightIn)
	}

	return nil
}

// GetNside returns the nside value or the default.
func (c *MapConfig) GetNside() int64 {
	if c.Nside == nil {
		return defaultNside
	}
	return *c.Nside
}

// GetNested returns the nested value or the default.
func (c *MapConfig) GetNested() bool {
	if c.Nested == nil {
		return true
	}
	return *c.Nested
}

// GetDistanceModulus returns the distance_modulus value or the default.
func (c *MapConfig) GetDistanceModulus() float64 {
	if c.DistanceModulus == nil {
		return 9.0
	}
	return *c.DistanceModulus
}

// GetReducer returns the reducer name or the default.
func (c *MapConfig) GetReducer() string {
	if c.Reducer == nil || *c.Reducer == "" {
		return "mean"
	}
	return strings.ToLower(*c.Reducer)
}

// GetPercentiles returns the configured percentiles or the default bands.
func (c *MapConfig) GetPercentiles() []float64 {
	if len(c.Percentiles) == 0 {
		return append([]float64(nil), defaultPercentiles...)
	}
	return append([]float64(nil), c.Percentiles...)
}

// GetOversample returns the oversample value or the default.
func (c *MapConfig) GetOversample() float64 {
	if c.Oversample == nil {
		return 3
	}
	return *c.Oversample
}

// GetLookup returns the lookup mode or the default.
func (c *MapConfig) GetLookup() string {
	if c.Lookup == nil || *c.Lookup == "" {
		return "auto"
	}
	return strings.ToLower(*c.Lookup)
}

// GetDenseLookupMaxPixels returns the dense_lookup_max_pixels value or the default.
func (c *MapConfig) GetDenseLookupMaxPixels() int64 {
	if c.DenseLookupMaxPixels == nil {
		return defaultDenseLookupMaxPixels
	}
	return *c.DenseLookupMaxPixels
}

// GetWorkers returns the workers value or the default.
func (c *MapConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetProfileMuMin returns the profile_mu_min value or the default.
func (c *MapConfig) GetProfileMuMin() float64 {
	if c.ProfileMuMin == nil {
		return 5
	}
	return *c.ProfileMuMin
}

// GetProfileMuMax returns the profile_mu_max value or the default.
func (c *MapConfig) GetProfileMuMax() float64 {
	if c.ProfileMuMax == nil {
		return 15
	}
	return *c.ProfileMuMax
}

// GetProfileSteps returns the profile_steps value or the default.
func (c *MapConfig) GetProfileSteps() int {
	if c.ProfileSteps == nil {
		return 100
	}
	return *c.ProfileSteps
}

// GetImageWidthIn returns the image width in inches or the default.
func (c *MapConfig) GetImageWidthIn() float64 {
	if c.ImageWidthIn == nil {
		return 5
	}
	return *c.ImageWidthIn
}

// GetImageHeightIn returns the image height in inches or the default.
func (c *MapConfig) GetImageHeightIn() float64 {
	if c.ImageHeightIn == nil {
		return 5
	}
	return *c.ImageHeightIn
}

// GetBayestarBinary returns the inference program path, or "" when unset.
func (c *MapConfig) GetBayestarBinary() string {
	if c.BayestarBinary == nil {
		return ""
	}
	return *c.BayestarBinary
}

// GetBayestarArgs returns the program flags or the default flags.
func (c *MapConfig) GetBayestarArgs() []string {
	if c.BayestarArgs == nil {
		return append([]string(nil), defaultBayestarArgs...)
	}
	return append([]string(nil), c.BayestarArgs...)
}
