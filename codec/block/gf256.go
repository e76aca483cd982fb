/*
NAME
  gf256.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package block

// GF(2^8) arithmetic with reduction polynomial x^8+x^4+x^3+x^2+1 (0x11d) and
// primitive element 2, the field used throughout this package's Reed-Solomon
// implementation. exp and log are built once at init from repeated
// multiplication by the primitive element, the standard way to populate
// these tables without a multiplication circuit at every call site.
const gfPoly = 0x11d

var (
	gfExp [512]byte // Indexed mod 255, doubled to avoid a wraparound branch in gfMul.
	gfLog [256]byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExp[i] = byte(x)
		gfLog[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= gfPoly
		}
	}
	for i := 255; i < 512; i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	// b == 0 is a caller bug (division by the zero element); panic rather
	// than silently returning garbage (gfLog[0] is 0, so the table lookup
	// alone would not catch it).
	if b == 0 {
		panic("block: division by zero in GF(2^8)")
	}
	return gfExp[(int(gfLog[a])-int(gfLog[b])+255)%255]
}

func gfPow(a byte, n int) byte {
	if a == 0 {
		if n == 0 {
			return 1
		}
		return 0
	}
	e := (int(gfLog[a]) * n) % 255
	if e < 0 {
		e += 255
	}
	return gfExp[e]
}

func gfInv(a byte) byte {
	return gfExp[255-int(gfLog[a])]
}

// gfPolyEval evaluates p, stored highest-degree-coefficient first (p[0] is
// the coefficient of x^(len(p)-1)), at x using Horner's method.
func gfPolyEval(p []byte, x byte) byte {
	y := p[0]
	for i := 1; i < len(p); i++ {
		y = gfMul(y, x) ^ p[i]
	}
	return y
}

// gfPolyMul multiplies two polynomials, both stored highest-degree-coefficient
// first, returning the product in the same convention.
func gfPolyMul(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] ^= gfMul(av, bv)
		}
	}
	return out
}
