// Package variant derives cache keys for resized images.
package variant

import (
	"fmt"

	"github.com/mkazymov/imgcache/internal/domain"
)

// Filename builds the store key for a variant. It always encodes both
// resolved axes: keying on only the requested axis would let a 200x167 and a
// 200x300 request collide on the same cache entry.
func Filename(sourceID string, dims domain.Dimensions) string {
	return fmt.Sprintf("%s_%dx%d.jpg", sourceID, dims.Width, dims.Height)
}
