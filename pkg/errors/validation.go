package errors

import (
	"math"
)

// RadiusGuardFraction is the fraction of the raster's shorter projected
// dimension above which a search radius is rejected without --force. The
// value is a heuristic guard against unit mismatches (meters supplied for a
// degree-projected raster), not a geometric limit.
const RadiusGuardFraction = 0.05

// ValidateRadius checks a single search radius against a raster's pixel size
// and dimensions. pixelSize is the raster's cell width in projected units,
// minDim the smaller of its width/height in cells.
//
// Two failure modes exist:
//   - the radius rounds to zero pixels (INVALID_RADIUS)
//   - the radius exceeds RadiusGuardFraction of the raster's shorter
//     projected dimension (RADIUS_TOO_LARGE), unless force is set
func ValidateRadius(radius, pixelSize float64, minDim int, force bool) error {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return New(ErrCodeInvalidRadius, "search radius must be a positive finite number, got %g", radius)
	}
	if pixelSize <= 0 {
		return New(ErrCodeInvalidInput, "raster pixel size must be positive, got %g", pixelSize)
	}
	if PixelRadius(radius, pixelSize) < 1 {
		return New(ErrCodeInvalidRadius,
			"search radius %g rounds to zero pixels at pixel size %g", radius, pixelSize)
	}
	minExtent := pixelSize * float64(minDim)
	if !force && radius > RadiusGuardFraction*minExtent {
		return New(ErrCodeRadiusTooLarge,
			"search radius %g is quite large compared to the raster extent %g; "+
				"this usually means the radius is in meters while the raster is in "+
				"degrees (or similar). Put the radius in the raster's projected units, "+
				"or pass --force if this was intentional", radius, minExtent)
	}
	return nil
}

// ValidateRadii applies ValidateRadius to every radius and rejects an empty
// list.
func ValidateRadii(radii []float64, pixelSize float64, minDim int, force bool) error {
	if len(radii) == 0 {
		return New(ErrCodeInvalidRadius, "at least one search radius is required")
	}
	for _, r := range radii {
		if err := ValidateRadius(r, pixelSize, minDim, force); err != nil {
			return err
		}
	}
	return nil
}

// PixelRadius converts a projected-unit search radius to whole pixels by
// dividing by the pixel size and rounding to the nearest integer.
func PixelRadius(radius, pixelSize float64) int {
	return int(math.Round(radius / pixelSize))
}

// ValidatePixelRadius rejects kernel radii below one pixel.
func ValidatePixelRadius(nPixels int) error {
	if nPixels < 1 {
		return New(ErrCodeInvalidKernel, "kernel pixel radius must be >= 1, got %d", nPixels)
	}
	return nil
}
