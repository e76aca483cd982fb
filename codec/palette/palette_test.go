/*
NAME
  palette_test.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package palette

import (
	"image/color"
	"testing"
)

func TestBitsPerPixel(t *testing.T) {
	if got := Palette2.BitsPerPixel(); got != 1 {
		t.Errorf("Palette2.BitsPerPixel() = %d, want 1", got)
	}
	if got := Palette4.BitsPerPixel(); got != 2 {
		t.Errorf("Palette4.BitsPerPixel() = %d, want 2", got)
	}
}

func TestSnapIdempotence(t *testing.T) {
	for _, p := range []Palette{Palette2, Palette4} {
		for i, c := range p {
			idx, exact := Snap(p, c, nil)
			if !exact {
				t.Errorf("Snap(%v) exact = false, want true", c)
			}
			if idx != i {
				t.Errorf("Snap(%v) index = %d, want %d", c, idx, i)
			}
		}
	}
}

func TestSnapNearest(t *testing.T) {
	// (200,10,10) is closer to red (255,0,0) than to any other Palette4 entry.
	idx, exact := Snap(Palette4, color.RGBA{R: 200, G: 10, B: 10, A: 255}, nil)
	if exact {
		t.Errorf("Snap unexpectedly exact")
	}
	if idx != 1 {
		t.Errorf("got index %d, want 1 (red)", idx)
	}
}

func TestSnapStats(t *testing.T) {
	var s Stats
	Snap(Palette2, color.RGBA{R: 0, G: 0, B: 0, A: 255}, &s)
	Snap(Palette2, color.RGBA{R: 10, G: 10, B: 10, A: 255}, &s)
	if s.Exact != 1 {
		t.Errorf("Exact = %d, want 1", s.Exact)
	}
	if s.Estimated != 1 {
		t.Errorf("Estimated = %d, want 1", s.Estimated)
	}
	if len(s.Distances) != 1 {
		t.Fatalf("len(Distances) = %d, want 1", len(s.Distances))
	}
	if s.Distances[0] != 300 { // 10^2*3
		t.Errorf("Distances[0] = %v, want 300", s.Distances[0])
	}
}

func TestFor(t *testing.T) {
	if _, ok := For(3); ok {
		t.Error("For(3) ok = true, want false")
	}
	if p, ok := For(2); !ok || len(p) != 2 {
		t.Errorf("For(2) = %v, %v, want Palette2, true", p, ok)
	}
}
