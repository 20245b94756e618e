// Package tileindex maps AOI extents onto the quadkey partitioning used
// by tiled datasets and resolves quadkeys to their remote resources.
package tileindex

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultZoom is the partition level of the tiled building datasets.
const DefaultZoom = maptile.Zoom(9)

// Cover returns the quadkeys of every tile at the given zoom whose cell
// intersects the bounding box. Pure and deterministic: keys come out in
// row-major order (west to east, then north to south), so a fetch cap
// applied to the head of the slice is stable across calls.
func Cover(b orb.Bound, zoom maptile.Zoom) []string {
	minTile := maptile.At(b.Min, zoom)
	maxTile := maptile.At(b.Max, zoom)

	minX, maxX := minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var keys []string
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			keys = append(keys, Quadkey(maptile.New(x, y, zoom)))
		}
	}
	return keys
}

// Quadkey renders a tile's base-4 quadkey string, one digit per zoom
// level, most significant level first.
func Quadkey(t maptile.Tile) string {
	var qk strings.Builder
	for i := int(t.Z); i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		qk.WriteByte(digit)
	}
	return qk.String()
}
