// Package watermask imports a grayscale or alpha PNG and answers
// point-in-water queries over a configured world rectangle.
package watermask

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"

	"github.com/cityforge/server/internal/worldmap"
)

// waterThreshold: a pixel is water when its luma is at or below this
// value (dark = water, matching heightmap conventions).
const waterThreshold = 0x4000

// Mask is a boolean grid stretched over a world-space rectangle.
// The zero value (and any Mask with no cells) is dry everywhere.
type Mask struct {
	minX, minZ float64
	maxX, maxZ float64
	cols, rows int
	cells      []bool
}

// Empty returns a mask with no water anywhere.
func Empty() *Mask { return &Mask{} }

// Load reads a PNG from path and rasterizes it onto the rectangle
// [minX,maxX)x[minZ,maxZ) at roughly cellSize resolution. A missing or
// unreadable file degrades to an empty mask with a log line rather than
// an error: water is optional input.
func Load(path string, minX, minZ, maxX, maxZ, cellSize float64) *Mask {
	if path == "" {
		return Empty()
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("[WaterMask] No water mask at %s (%v), land everywhere", path, err)
		return Empty()
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		log.Printf("[WaterMask] Failed to decode %s: %v, land everywhere", path, err)
		return Empty()
	}
	m, err := FromImage(img, minX, minZ, maxX, maxZ, cellSize)
	if err != nil {
		log.Printf("[WaterMask] %v, land everywhere", err)
		return Empty()
	}
	log.Printf("[WaterMask] Loaded %s (%dx%d cells over [%.0f,%.0f]-[%.0f,%.0f])",
		path, m.cols, m.rows, minX, minZ, maxX, maxZ)
	return m
}

// FromImage rasterizes an already-decoded image onto the world rectangle.
func FromImage(img image.Image, minX, minZ, maxX, maxZ, cellSize float64) (*Mask, error) {
	if maxX <= minX || maxZ <= minZ {
		return nil, fmt.Errorf("degenerate water rectangle [%v,%v]-[%v,%v]", minX, minZ, maxX, maxZ)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("cell size %v must be positive", cellSize)
	}
	cols := int((maxX - minX) / cellSize)
	rows := int((maxZ - minZ) / cellSize)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	b := img.Bounds()
	m := &Mask{
		minX: minX, minZ: minZ, maxX: maxX, maxZ: maxZ,
		cols: cols, rows: rows,
		cells: make([]bool, cols*rows),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			px := b.Min.X + col*b.Dx()/cols
			pz := b.Min.Y + row*b.Dy()/rows
			r, g, bl, a := img.At(px, pz).RGBA()
			// Fully transparent pixels count as water too.
			luma := (r + g + bl) / 3
			m.cells[row*cols+col] = a == 0 || luma <= waterThreshold
		}
	}
	return m, nil
}

// IsWater reports whether the position falls on a water cell. Positions
// outside the rectangle are always land.
func (m *Mask) IsWater(p worldmap.Vec3) bool {
	if len(m.cells) == 0 {
		return false
	}
	if p.X < m.minX || p.X >= m.maxX || p.Z < m.minZ || p.Z >= m.maxZ {
		return false
	}
	col := int((p.X - m.minX) / (m.maxX - m.minX) * float64(m.cols))
	row := int((p.Z - m.minZ) / (m.maxZ - m.minZ) * float64(m.rows))
	if col >= m.cols {
		col = m.cols - 1
	}
	if row >= m.rows {
		row = m.rows - 1
	}
	return m.cells[row*m.cols+col]
}
