// Package resolver maps requested image dimensions onto concrete target
// dimensions, preserving the aspect ratio of the original image when only
// one axis is requested.
package resolver

import (
	"math"

	"github.com/mkazymov/imgcache/internal/domain"
)

// Resolve validates the query and computes the target dimensions. Validation
// runs before any scaling: each present axis must be a finite, integral,
// positive number. The returned error is a *domain.DimensionError naming the
// offending axis ("width", "height" or "both").
//
// Scaling uses the original image's ratio, never a cached variant's:
//   - both axes present: used as-is, distortion is the caller's choice
//   - width only: height = round(width / ratio)
//   - height only: width = round(height * ratio)
//   - neither: the original dimensions
//
// where ratio = origW/origH, defaulting to 1 when the original height is
// zero. Rounding is half-away-from-zero.
func Resolve(original domain.Dimensions, q domain.Query) (domain.Dimensions, error) {
	widthBad := q.Width != nil && !validAxis(*q.Width)
	heightBad := q.Height != nil && !validAxis(*q.Height)

	switch {
	case widthBad && heightBad:
		return domain.Dimensions{}, &domain.DimensionError{Field: "both", Reason: "width and height must be positive integers"}
	case widthBad:
		return domain.Dimensions{}, &domain.DimensionError{Field: "width", Reason: "width must be a positive integer"}
	case heightBad:
		return domain.Dimensions{}, &domain.DimensionError{Field: "height", Reason: "height must be a positive integer"}
	}

	ratio := 1.0
	if original.Height > 0 {
		ratio = float64(original.Width) / float64(original.Height)
	}

	switch {
	case q.Width != nil && q.Height != nil:
		return domain.Dimensions{Width: int(*q.Width), Height: int(*q.Height)}, nil
	case q.Width != nil:
		return domain.Dimensions{
			Width:  int(*q.Width),
			Height: int(math.Round(*q.Width / ratio)),
		}, nil
	case q.Height != nil:
		return domain.Dimensions{
			Width:  int(math.Round(*q.Height * ratio)),
			Height: int(*q.Height),
		}, nil
	}

	return original, nil
}

func validAxis(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v > 0 && v == math.Trunc(v)
}
