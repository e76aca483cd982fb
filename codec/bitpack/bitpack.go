/*
NAME
  bitpack.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bitpack maps a byte sequence to a sequence of palette indices and
// back, bit-exact, for 1 and 2 bits-per-pixel alphabets.
package bitpack

import "github.com/pkg/errors"

// errBadBPP is returned when a caller asks for a bits-per-pixel value other
// than 1 or 2, the only alphabet widths this system's palettes define.
var errBadBPP = errors.New("bitpack: bits-per-pixel must be 1 or 2")

// Pack splits data into bpp-sized bit groups, most-significant group first,
// returning one palette index per pixel. In 1-bpp mode each byte yields
// bits 7..0 as pixels 0..7; in 2-bpp mode each byte yields bit-pairs
// (7:6),(5:4),(3:2),(1:0) as pixels 0..3.
func Pack(bpp int, data []byte) ([]int, error) {
	if bpp != 1 && bpp != 2 {
		return nil, errBadBPP
	}
	perByte := 8 / bpp
	out := make([]int, 0, len(data)*perByte)
	mask := (1 << uint(bpp)) - 1
	for _, b := range data {
		for shift := 8 - bpp; shift >= 0; shift -= bpp {
			out = append(out, int(b>>uint(shift))&mask)
		}
	}
	return out, nil
}

// Unpack is the inverse of Pack: indices are consumed perByte at a time,
// the first index in each group contributing the most-significant bits of
// the output byte. If len(indices) isn't a multiple of perByte, the final
// partial byte is padded with zero bits in the low positions.
func Unpack(bpp int, indices []int) ([]byte, error) {
	if bpp != 1 && bpp != 2 {
		return nil, errBadBPP
	}
	perByte := 8 / bpp
	out := make([]byte, 0, (len(indices)+perByte-1)/perByte)
	var cur byte
	var n int
	for _, idx := range indices {
		shift := 8 - bpp*(n+1)
		cur |= byte(idx&((1<<uint(bpp))-1)) << uint(shift)
		n++
		if n == perByte {
			out = append(out, cur)
			cur, n = 0, 0
		}
	}
	if n != 0 {
		out = append(out, cur)
	}
	return out, nil
}
