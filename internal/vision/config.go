package vision

import (
	"fmt"
	"math"
)

// Color is a reference color in OpenCV's BGR channel order.
type Color struct {
	B uint8 `toml:"b"`
	G uint8 `toml:"g"`
	R uint8 `toml:"r"`
}

// Distance returns the Euclidean distance between c and the BGR pixel (b, g, r).
func (c Color) Distance(b, g, r uint8) float64 {
	db := float64(c.B) - float64(b)
	dg := float64(c.G) - float64(g)
	dr := float64(c.R) - float64(r)
	return math.Sqrt(db*db + dg*dg + dr*dr)
}

// LocatorConfig holds the tuned constants of board detection.
type LocatorConfig struct {
	// Pattern-corner strategy
	PatternSize int `toml:"pattern_size"` // internal corners per side (7 for chess)

	// Color-mask strategy and border trimming
	BlackValueMax    int     `toml:"black_value_max"`    // HSV value upper bound for black-ish pixels
	CloseKernel      int     `toml:"close_kernel"`       // morphological closing kernel side
	BorderBlackRatio float64 `toml:"border_black_ratio"` // strip an edge line at or above this black ratio
	MinTrimSize      int     `toml:"min_trim_size"`      // never trim a dimension down to this many pixels

	// Edge-contour strategy
	AdaptiveBlockSize int     `toml:"adaptive_block_size"`
	AdaptiveC         float64 `toml:"adaptive_c"`
	MinContourArea    float64 `toml:"min_contour_area"`
	AspectMin         float64 `toml:"aspect_min"`
	AspectMax         float64 `toml:"aspect_max"`

	// Margin expands color-mask and contour crops on every side.
	Margin int `toml:"margin"`
}

// DefaultLocatorConfig returns the empirically tuned locator constants.
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{
		PatternSize:       7,
		BlackValueMax:     50,
		CloseKernel:       5,
		BorderBlackRatio:  0.8,
		MinTrimSize:       10,
		AdaptiveBlockSize: 11,
		AdaptiveC:         2,
		MinContourArea:    1000,
		AspectMin:         0.8,
		AspectMax:         1.2,
		Margin:            5,
	}
}

// Validate checks if the configuration is valid
func (c LocatorConfig) Validate() error {
	if c.PatternSize < 2 || c.PatternSize > 16 {
		return fmt.Errorf("invalid pattern size: %d (must be 2-16)", c.PatternSize)
	}

	if c.BlackValueMax < 0 || c.BlackValueMax > 255 {
		return fmt.Errorf("invalid black value max: %d (must be 0-255)", c.BlackValueMax)
	}

	if c.CloseKernel < 1 {
		return fmt.Errorf("invalid close kernel: %d (must be >= 1)", c.CloseKernel)
	}

	if c.BorderBlackRatio <= 0 || c.BorderBlackRatio > 1 {
		return fmt.Errorf("invalid border black ratio: %f (must be in (0, 1])", c.BorderBlackRatio)
	}

	if c.MinTrimSize < 1 {
		return fmt.Errorf("invalid min trim size: %d (must be >= 1)", c.MinTrimSize)
	}

	if c.AdaptiveBlockSize < 3 || c.AdaptiveBlockSize%2 == 0 {
		return fmt.Errorf("invalid adaptive block size: %d (must be odd and >= 3)", c.AdaptiveBlockSize)
	}

	if c.MinContourArea < 0 {
		return fmt.Errorf("invalid min contour area: %f", c.MinContourArea)
	}

	if c.AspectMin <= 0 || c.AspectMax < c.AspectMin {
		return fmt.Errorf("invalid aspect range: [%f, %f]", c.AspectMin, c.AspectMax)
	}

	if c.Margin < 0 {
		return fmt.Errorf("invalid margin: %d", c.Margin)
	}

	return nil
}

// ClassifierConfig holds the tuned constants of cell classification.
type ClassifierConfig struct {
	AcceptThreshold    float64 `toml:"accept_threshold"`    // best correlation must exceed this
	BackgroundDistance float64 `toml:"background_distance"` // max distance to a square color to count as background
	LightSquare        Color   `toml:"light_square"`
	DarkSquare         Color   `toml:"dark_square"`
	TemplatePadding    int     `toml:"template_padding"` // shrink templates by this much per side to allow sliding
}

// DefaultClassifierConfig returns the classifier constants tuned for the
// brown wooden board the templates were cut from.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		AcceptThreshold:    0.5,
		BackgroundDistance: 45,
		LightSquare:        Color{B: 181, G: 217, R: 240},
		DarkSquare:         Color{B: 99, G: 136, R: 181},
		TemplatePadding:    0,
	}
}

// Validate checks if the configuration is valid
func (c ClassifierConfig) Validate() error {
	if c.AcceptThreshold < -1 || c.AcceptThreshold > 1 {
		return fmt.Errorf("invalid accept threshold: %f (must be -1..1)", c.AcceptThreshold)
	}

	if c.BackgroundDistance < 0 || c.BackgroundDistance > 442 {
		return fmt.Errorf("invalid background distance: %f (must be 0-442)", c.BackgroundDistance)
	}

	if c.TemplatePadding < 0 {
		return fmt.Errorf("invalid template padding: %d", c.TemplatePadding)
	}

	return nil
}
