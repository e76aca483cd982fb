/*
NAME
  block.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package block implements a systematic Reed-Solomon code over GF(2^8),
// used to protect each 128-byte on-wire block (and, with different message
// and ECC lengths, the metadata header) against silent byte corruption
// introduced by lossy video re-encoding.
//
// A pack-available erasure-coding library (github.com/klauspost/reedsolomon,
// pulled in by the other_examples reference repo unlucas-br-noiseCryptCloud)
// was evaluated for this package and rejected: its Reconstruct only fills in
// shards whose positions are already known to be missing, and has no
// syndrome-based facility for locating corruption whose position is unknown,
// which is exactly the contract this system needs (see DESIGN.md). The
// codec below is therefore a direct, from-scratch classical Reed-Solomon
// implementation: systematic generator-polynomial encoding and
// syndrome/Berlekamp-Massey/Chien/Forney decoding.
package block

import "github.com/pkg/errors"

// BlockSize is the fixed length of an on-wire data block.
const BlockSize = 128

// MetadataMessageLen and MetadataECCLen are the message and ECC lengths of
// the fixed-layout metadata block (MetadataMessageLen + MetadataECCLen ==
// 250; the metadata block does not use BlockSize).
const (
	MetadataMessageLen = 218
	MetadataECCLen     = 32
)

// ErrUnrecoverable is returned by Decode when the observed corruption
// exceeds the code's correction capacity, floor(E/2) byte errors.
var ErrUnrecoverable = errors.New("block: too many errors to correct")

// Codec is a systematic Reed-Solomon(C+E, C) codec: Encode appends E parity
// bytes to a C-byte message; Decode recovers the C-byte message from a
// C+E-byte codeword that may have up to floor(E/2) corrupted bytes at
// unknown positions.
type Codec struct {
	c, e int
	gen  []byte // Generator polynomial, degree e, highest-degree coefficient first.
}

// NewCodec returns a Codec for message length c and ECC length e. e must be
// in [1, 126] and c+e must not exceed 255, the largest codeword GF(2^8)
// Reed-Solomon can represent.
func NewCodec(c, e int) (*Codec, error) {
	if e < 1 || e > 126 {
		return nil, errors.Errorf("block: invalid ECC length %d, must be in [1,126]", e)
	}
	if c < 0 || c+e > 255 {
		return nil, errors.Errorf("block: invalid codeword length %d, must be <= 255", c+e)
	}
	return &Codec{c: c, e: e, gen: generator(e)}, nil
}

// generator builds g(x) = product_{i=1}^{e} (x - alpha^i), the degree-e
// generator polynomial whose roots are the narrow-sense syndrome locations
// used by Decode.
func generator(e int) []byte {
	g := []byte{1}
	for i := 1; i <= e; i++ {
		g = gfPolyMul(g, []byte{1, gfPow(2, i)})
	}
	return g
}

// Encode appends e parity bytes to msg, which must have length c.
func (rs *Codec) Encode(msg []byte) ([]byte, error) {
	if len(msg) != rs.c {
		return nil, errors.Errorf("block: message length %d, want %d", len(msg), rs.c)
	}
	// Systematic encoding: parity is the remainder of msg(x)*x^e divided by
	// g(x); codeword = msg || parity, since codeword(x) - remainder is then
	// exactly divisible by g(x) (and over GF(2), subtraction is XOR, so
	// "codeword(x) = msg(x)*x^e - remainder" is literally "append remainder").
	remainder := make([]byte, rs.e)
	work := make([]byte, len(msg)+rs.e)
	copy(work, msg)
	for i := 0; i < len(msg); i++ {
		coef := work[i]
		if coef == 0 {
			continue
		}
		for j, gv := range rs.gen {
			if gv == 0 {
				continue
			}
			work[i+j] ^= gfMul(gv, coef)
		}
	}
	copy(remainder, work[len(msg):])

	out := make([]byte, 0, rs.c+rs.e)
	out = append(out, msg...)
	out = append(out, remainder...)
	return out, nil
}

// Decode recovers the c-byte message from a c+e-byte codeword, correcting
// up to floor(e/2) byte errors at unknown positions. It returns the number
// of symbols corrected, or ErrUnrecoverable if correction was not possible.
func (rs *Codec) Decode(codeword []byte) ([]byte, int, error) {
	n := rs.c + rs.e
	if len(codeword) != n {
		return nil, 0, errors.Errorf("block: codeword length %d, want %d", len(codeword), n)
	}

	syn := syndromes(codeword, rs.e)
	clean := true
	for _, s := range syn {
		if s != 0 {
			clean = false
			break
		}
	}
	if clean {
		msg := make([]byte, rs.c)
		copy(msg, codeword[:rs.c])
		return msg, 0, nil
	}

	lambda := berlekampMassey(syn)
	t := rs.e / 2
	errCount := len(lambda) - 1
	if errCount > t || errCount == 0 {
		return nil, 0, ErrUnrecoverable
	}

	positions, ok := chienSearch(lambda, n)
	if !ok || len(positions) != errCount {
		return nil, 0, ErrUnrecoverable
	}

	corrected := append([]byte(nil), codeword...)
	if err := forneyCorrect(corrected, syn, lambda, positions); err != nil {
		return nil, 0, ErrUnrecoverable
	}

	msg := make([]byte, rs.c)
	copy(msg, corrected[:rs.c])
	return msg, len(positions), nil
}

// syndromes computes S_1..S_e, S_j = codeword(alpha^j), treating codeword[0]
// as the highest-degree coefficient (the systematic encoding convention used
// by Encode).
func syndromes(codeword []byte, e int) []byte {
	syn := make([]byte, e)
	for j := 1; j <= e; j++ {
		syn[j-1] = gfPolyEval(codeword, gfPow(2, j))
	}
	return syn
}

// berlekampMassey finds the shortest linear feedback shift register (the
// error locator polynomial, highest-degree coefficient first) that
// generates the syndrome sequence syn[0..N-1] (S_1..S_e). This is the
// textbook iterative formulation: C is the current locator candidate, B the
// locator candidate at the last length change, L the current LFSR length.
func berlekampMassey(syn []byte) []byte {
	n := len(syn)
	c := make([]byte, n+1) // LS-first: c[i] is the coefficient of x^i.
	b := make([]byte, n+1)
	c[0], b[0] = 1, 1
	l, m := 0, 1
	bCoef := byte(1)

	for i := 0; i < n; i++ {
		delta := syn[i]
		for j := 1; j <= l; j++ {
			delta ^= gfMul(c[j], syn[i-j])
		}
		if delta == 0 {
			m++
			continue
		}
		t := make([]byte, len(c))
		copy(t, c)

		coef := gfDiv(delta, bCoef)
		for j := 0; j < len(b); j++ {
			if j+m >= len(c) {
				break
			}
			c[j+m] ^= gfMul(coef, b[j])
		}

		if 2*l <= i {
			l = i + 1 - l
			copy(b, t)
			for j := len(t); j < len(b); j++ {
				b[j] = 0
			}
			bCoef = delta
			m = 1
		} else {
			m++
		}
	}

	out := make([]byte, l+1)
	for i := 0; i <= l; i++ {
		out[l-i] = c[i]
	}
	return out
}

// chienSearch finds the roots of lambda among alpha^-0..alpha^-(n-1) by
// brute-force evaluation (Chien search), returning the corresponding
// byte-array indices (0 is the first, highest-degree-coefficient byte of
// the codeword).
func chienSearch(lambda []byte, n int) ([]int, bool) {
	var positions []int
	for j := 0; j < n; j++ {
		// Root candidate is alpha^-j; lambda is stored highest-degree-first,
		// so gfPolyEval handles the Horner evaluation directly.
		x := gfPow(2, (255-j)%255)
		if gfPolyEval(lambda, x) == 0 {
			positions = append(positions, n-1-j)
		}
	}
	return positions, true
}

// forneyCorrect computes error magnitudes via Forney's formula and applies
// them in place to codeword at the given array positions.
func forneyCorrect(codeword, syn, lambda []byte, positions []int) error {
	// S(x) = S_1 + S_2 x + ... + S_e x^(e-1), least-significant-first.
	s := make([]byte, len(syn))
	for i, v := range syn {
		s[i] = v
	}
	lambdaLS := make([]byte, len(lambda))
	for i, v := range lambda {
		lambdaLS[len(lambda)-1-i] = v
	}

	// Omega(x) = S(x)*Lambda(x) mod x^(2t); 2t is the largest even number
	// not exceeding len(syn), since syn holds e = 2t (or 2t+1) syndromes.
	twoT := len(syn) - len(syn)%2
	omegaLS := polyMulLS(s, lambdaLS)
	if len(omegaLS) > twoT {
		omegaLS = omegaLS[:twoT]
	}

	lambdaDerivLS := formalDerivativeLS(lambdaLS)

	for _, pos := range positions {
		j := len(codeword) - 1 - pos // exponent j such that root was alpha^-j
		xInv := gfPow(2, (255-j)%255)

		omegaVal := evalLS(omegaLS, xInv)
		derivVal := evalLS(lambdaDerivLS, xInv)
		if derivVal == 0 {
			return errors.New("block: zero derivative in Forney correction")
		}
		magnitude := gfDiv(omegaVal, derivVal)
		codeword[pos] ^= magnitude
	}
	return nil
}

// polyMulLS multiplies two least-significant-first polynomials.
func polyMulLS(a, b []byte) []byte {
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

// formalDerivativeLS computes the formal derivative of a least-significant-
// first polynomial over GF(2): terms of even degree vanish, odd-degree
// terms shift down by one.
func formalDerivativeLS(c []byte) []byte {
	if len(c) <= 1 {
		return []byte{0}
	}
	out := make([]byte, len(c)-1)
	for i := 1; i < len(c); i += 2 {
		out[i-1] = c[i]
	}
	return out
}

func evalLS(c []byte, x byte) byte {
	var y byte
	xp := byte(1)
	for _, v := range c {
		y ^= gfMul(v, xp)
		xp = gfMul(xp, x)
	}
	return y
}
