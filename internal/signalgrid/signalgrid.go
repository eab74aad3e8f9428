// Package signalgrid implements the shared 2D stigmergy field. Agents emit
// signal at their cell; a per-tick diffusion pass bleeds a fraction of each
// cell to its four neighbors and applies exponential evaporation. Agents read
// the field back through point samples and local gradients, which is how
// dormant-tier wake triggers and foraging behavior couple to the world
// without agent-to-agent messaging.
package signalgrid

import (
	"fmt"

	"github.com/nvandessel/swarmlod/internal/vecmath"
)

// Config holds the grid's diffusion parameters.
type Config struct {
	// Width and Height are the cell dimensions. Defaults: 256 x 256.
	Width  int
	Height int

	// DiffuseRate is the fraction of each cell's signal redistributed to
	// its neighbors per Diffuse call, in [0, 1]. Default: 0.2.
	DiffuseRate float64

	// EvaporationRate is the fraction of signal lost per Diffuse call
	// after redistribution, in [0, 1]. Default: 0.01.
	EvaporationRate float64
}

// DefaultConfig returns the default grid configuration.
func DefaultConfig() Config {
	return Config{
		Width:           256,
		Height:          256,
		DiffuseRate:     0.2,
		EvaporationRate: 0.01,
	}
}

// Validate checks the configuration for values that would corrupt the field.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("signalgrid: dimensions %dx%d must be positive", c.Width, c.Height)
	}
	if c.DiffuseRate < 0 || c.DiffuseRate > 1 {
		return fmt.Errorf("signalgrid: diffuse rate %v outside [0, 1]", c.DiffuseRate)
	}
	if c.EvaporationRate < 0 || c.EvaporationRate > 1 {
		return fmt.Errorf("signalgrid: evaporation rate %v outside [0, 1]", c.EvaporationRate)
	}
	return nil
}

// Grid is a single-channel signal field. Not safe for concurrent mutation;
// the orchestrator runs Diffuse between batch passes and serializes emits
// through per-worker accumulation.
type Grid struct {
	cfg     Config
	cells   []float64
	scratch []float64
}

// New creates a zeroed grid. Panics on an invalid configuration since that
// is a programming error, not a runtime condition.
func New(cfg Config) *Grid {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return &Grid{
		cfg:     cfg,
		cells:   make([]float64, cfg.Width*cfg.Height),
		scratch: make([]float64, cfg.Width*cfg.Height),
	}
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.cfg.Width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.cfg.Height }

// Emit deposits amount at (x, y). Out-of-bounds coordinates are clamped to
// the nearest edge cell; negative amounts are ignored.
func (g *Grid) Emit(x, y int, amount float64) {
	if amount <= 0 {
		return
	}
	g.cells[g.idx(g.clampX(x), g.clampY(y))] += amount
}

// Sample returns the signal at (x, y), clamped to the grid.
func (g *Grid) Sample(x, y int) float64 {
	return g.cells[g.idx(g.clampX(x), g.clampY(y))]
}

// Total returns the signal mass summed over all cells.
func (g *Grid) Total() float64 {
	var sum float64
	for _, v := range g.cells {
		sum += v
	}
	return sum
}

// Diffuse runs one diffusion step: every cell keeps (1 - DiffuseRate) of its
// signal and sends DiffuseRate split four ways to its neighbors; the shares
// aimed past an edge are lost. Evaporation then scales the whole field by
// (1 - EvaporationRate). Total mass never increases.
func (g *Grid) Diffuse() {
	w, h := g.cfg.Width, g.cfg.Height
	keep := 1 - g.cfg.DiffuseRate
	share := g.cfg.DiffuseRate / 4
	retain := 1 - g.cfg.EvaporationRate

	for i := range g.scratch {
		g.scratch[i] = 0
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.cells[g.idx(x, y)]
			if v == 0 {
				continue
			}
			g.scratch[g.idx(x, y)] += v * keep
			out := v * share
			if x > 0 {
				g.scratch[g.idx(x-1, y)] += out
			}
			if x < w-1 {
				g.scratch[g.idx(x+1, y)] += out
			}
			if y > 0 {
				g.scratch[g.idx(x, y-1)] += out
			}
			if y < h-1 {
				g.scratch[g.idx(x, y+1)] += out
			}
		}
	}
	for i, v := range g.scratch {
		g.cells[i] = v * retain
	}
}

// Gradient returns the signal gradient at (x, y) by central difference:
// a vector pointing toward higher concentration. Edge cells fall back to
// one-sided differences.
func (g *Grid) Gradient(x, y int) (dx, dy float64) {
	x, y = g.clampX(x), g.clampY(y)
	x0, x1 := g.clampX(x-1), g.clampX(x+1)
	y0, y1 := g.clampY(y-1), g.clampY(y+1)
	if x1 != x0 {
		dx = (g.cells[g.idx(x1, y)] - g.cells[g.idx(x0, y)]) / float64(x1-x0)
	}
	if y1 != y0 {
		dy = (g.cells[g.idx(x, y1)] - g.cells[g.idx(x, y0)]) / float64(y1-y0)
	}
	return dx, dy
}

// Add merges another field of identical dimensions into this one, used to
// fold per-worker emission buffers into the shared grid.
func (g *Grid) Add(other *Grid) error {
	if other.cfg.Width != g.cfg.Width || other.cfg.Height != g.cfg.Height {
		return fmt.Errorf("signalgrid: cannot merge %dx%d into %dx%d",
			other.cfg.Width, other.cfg.Height, g.cfg.Width, g.cfg.Height)
	}
	for i, v := range other.cells {
		g.cells[i] += v
	}
	return nil
}

// Reset zeroes every cell.
func (g *Grid) Reset() {
	for i := range g.cells {
		g.cells[i] = 0
	}
}

func (g *Grid) idx(x, y int) int { return y*g.cfg.Width + x }

func (g *Grid) clampX(x int) int { return int(vecmath.Clamp(float64(x), 0, float64(g.cfg.Width-1))) }

func (g *Grid) clampY(y int) int { return int(vecmath.Clamp(float64(y), 0, float64(g.cfg.Height-1))) }
