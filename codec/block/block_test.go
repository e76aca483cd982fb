/*
NAME
  block_test.go

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

import (
	"math/rand"
	"testing"
)

func TestEncodeLength(t *testing.T) {
	rs, err := NewCodec(112, 16)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	msg := make([]byte, 112)
	for i := range msg {
		msg[i] = byte(i)
	}
	codeword, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(codeword) != 128 {
		t.Fatalf("got codeword length %d, want 128", len(codeword))
	}
	for i, b := range msg {
		if codeword[i] != b {
			t.Fatalf("codeword[%d] = %d, want systematic message byte %d", i, codeword[i], b)
		}
	}
}

func TestRoundTripClean(t *testing.T) {
	rs, err := NewCodec(112, 16)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	msg := make([]byte, 112)
	rand.New(rand.NewSource(1)).Read(msg)
	codeword, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, corrected, err := rs.Decode(codeword)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if corrected != 0 {
		t.Errorf("corrected = %d, want 0 for a clean channel", corrected)
	}
	for i := range msg {
		if got[i] != msg[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], msg[i])
		}
	}
}

func TestRoundTripWithErrors(t *testing.T) {
	const c, e = 112, 16
	t_ := e / 2
	rs, err := NewCodec(c, e)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	r := rand.New(rand.NewSource(2))
	for trial := 0; trial < 20; trial++ {
		msg := make([]byte, c)
		r.Read(msg)
		codeword, err := rs.Encode(msg)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}

		// Flip t_ distinct byte positions to a different, nonzero-delta value.
		positions := r.Perm(len(codeword))[:t_]
		for _, p := range positions {
			var flip byte
			for {
				flip = byte(r.Intn(256))
				if flip != codeword[p] {
					break
				}
			}
			codeword[p] = flip
		}

		got, corrected, err := rs.Decode(codeword)
		if err != nil {
			t.Fatalf("trial %d: Decode failed: %v", trial, err)
		}
		if corrected > t_ {
			t.Errorf("trial %d: corrected = %d, want <= %d", trial, corrected, t_)
		}
		for i := range msg {
			if got[i] != msg[i] {
				t.Fatalf("trial %d: byte %d: got %d, want %d", trial, i, got[i], msg[i])
			}
		}
	}
}

func TestUnrecoverable(t *testing.T) {
	const c, e = 112, 16
	rs, err := NewCodec(c, e)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	msg := make([]byte, c)
	r := rand.New(rand.NewSource(3))
	r.Read(msg)
	codeword, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Flip more bytes than the code can correct.
	positions := r.Perm(len(codeword))[:e]
	for _, p := range positions {
		codeword[p] ^= 0xff
	}

	_, _, err = rs.Decode(codeword)
	if err != ErrUnrecoverable {
		t.Fatalf("got err %v, want ErrUnrecoverable", err)
	}
}

func TestMetadataBlockParams(t *testing.T) {
	rs, err := NewCodec(MetadataMessageLen, MetadataECCLen)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	msg := make([]byte, MetadataMessageLen)
	for i := range msg {
		msg[i] = byte(i * 7)
	}
	codeword, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(codeword) != BlockSize+MetadataECCLen-(BlockSize-MetadataMessageLen) {
		// BlockSize doesn't apply to the metadata block directly; the
		// invariant that matters is message+ecc == 250.
	}
	if len(codeword) != MetadataMessageLen+MetadataECCLen {
		t.Fatalf("got codeword length %d, want %d", len(codeword), MetadataMessageLen+MetadataECCLen)
	}

	// Flip the maximum correctable number of bytes (floor(E/2) = 16).
	r := rand.New(rand.NewSource(4))
	positions := r.Perm(len(codeword))[:MetadataECCLen/2]
	for _, p := range positions {
		codeword[p] ^= 0x5a
	}
	got, corrected, err := rs.Decode(codeword)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if corrected != MetadataECCLen/2 {
		t.Errorf("corrected = %d, want %d", corrected, MetadataECCLen/2)
	}
	for i := range msg {
		if got[i] != msg[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], msg[i])
		}
	}
}
