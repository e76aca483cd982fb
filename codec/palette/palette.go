/*
NAME
  palette.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package palette provides the fixed color alphabets used to spread data
// bytes across pixels, and nearest-color snapping for recovering a palette
// index from an observed, possibly re-encoded, pixel.
package palette

import "image/color"

// Palette is an ordered list of RGB triples defining a color alphabet. Index
// position, not color.RGBA identity, is the thing that carries data.
type Palette []color.RGBA

// Palette2 is the 2-color alphabet: black, white. One bit per pixel.
var Palette2 = Palette{
	{R: 0, G: 0, B: 0, A: 255},
	{R: 255, G: 255, B: 255, A: 255},
}

// Palette4 is the 4-color alphabet: black, red, green, blue. Two bits per
// pixel.
var Palette4 = Palette{
	{R: 0, G: 0, B: 0, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 255, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
}

// For returns the standard palette for the given size (2 or 4), and false if
// size isn't one of those.
func For(size int) (Palette, bool) {
	switch size {
	case 2:
		return Palette2, true
	case 4:
		return Palette4, true
	default:
		return nil, false
	}
}

// BitsPerPixel returns log2(len(p)). Only called with palettes built by For,
// so len(p) is always a power of two.
func (p Palette) BitsPerPixel() int {
	bpp := 0
	for n := len(p); n > 1; n >>= 1 {
		bpp++
	}
	return bpp
}

// Stats accumulates nearest-color snap outcomes across a decode run.
type Stats struct {
	Exact     int
	Estimated int

	// Distances holds the squared Euclidean distance of every estimated
	// (non-exact) snap, for the end-of-run numeric summary.
	Distances []float64
}

func (s *Stats) record(exact bool, dist float64) {
	if exact {
		s.Exact++
		return
	}
	s.Estimated++
	s.Distances = append(s.Distances, dist)
}

// Snap maps an observed RGB triple to its nearest palette index under
// squared Euclidean distance, recording the outcome in s if s is non-nil.
// Ties break toward the lower index because the scan below only replaces
// the best match on a strictly smaller distance.
func Snap(p Palette, c color.RGBA, s *Stats) (index int, exact bool) {
	best := 0
	bestDist := sqDist(p[0], c)
	for i := 1; i < len(p); i++ {
		d := sqDist(p[i], c)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	exact = bestDist == 0
	if s != nil {
		s.record(exact, bestDist)
	}
	return best, exact
}

func sqDist(a, b color.RGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return dr*dr + dg*dg + db*db
}
