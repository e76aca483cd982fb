/*
NAME
  metadata.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package metadata implements the fixed-layout header carried by the first
// frame of a colorcast video: payload size, CRC32, palette and ECC
// parameters, and the original file name, independently protected by its
// own Reed-Solomon block.
package metadata

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ausocean/colorcast/codec/block"
)

// EncodingVersion is the only value Decode will accept in the
// encoding_version field. It is process-wide configuration, not mutable
// state, so it is exposed as a single immutable constant.
const EncodingVersion = 3

// Field layout, all offsets relative to the start of the 250-byte block.
const (
	messageLen = block.MetadataMessageLen // 218
	eccLen     = block.MetadataECCLen     // 32
	blockLen   = messageLen + eccLen      // 250

	offVersion   = 0
	offPalette   = 2
	offPixelSize = 4
	offPayload   = 5
	offCRC       = 13
	offECCBytes  = 17
	offFileName  = 18
	fileNameLen  = 200
)

// ErrVersionMismatch is returned by Decode when the header's
// encoding_version field does not equal EncodingVersion.
var ErrVersionMismatch = errors.New("metadata: encoding version mismatch")

// ErrNameTooLong is returned by Encode when Header.FileName exceeds
// fileNameLen bytes once UTF-8 encoded.
var ErrNameTooLong = errors.New("metadata: file name exceeds 200 bytes")

// Header is the fully parsed content of the metadata frame's block.
type Header struct {
	// PaletteSize is 2 or 4.
	PaletteSize uint16

	// PayloadSize is the original file length in bytes.
	PayloadSize uint64

	// PayloadCRC32 is the IEEE CRC32 of the original file.
	PayloadCRC32 uint32

	// ECCBytes is the per-block ECC byte count E used for data blocks (not
	// for this header, which always uses eccLen).
	ECCBytes uint8

	// FileName is the original input file's base name.
	FileName string
}

// codec is the shared RS(250,218) coder for every Header en/decode; it has
// no per-instance state so one value serves every call.
var codec = must(block.NewCodec(messageLen, eccLen))

func must(c *block.Codec, err error) *block.Codec {
	if err != nil {
		panic(err) // messageLen/eccLen are compile-time constants; this can't fail.
	}
	return c
}

// Encode serializes h into a 250-byte RS-protected block: bytes [0,217] hold
// the fields of §3's layout table, and bytes [218,249] hold the RS parity
// computed over them.
func (h *Header) Encode() ([]byte, error) {
	name := []byte(h.FileName)
	if len(name) > fileNameLen {
		return nil, ErrNameTooLong
	}

	msg := make([]byte, messageLen)
	binary.BigEndian.PutUint16(msg[offVersion:], EncodingVersion)
	binary.BigEndian.PutUint16(msg[offPalette:], h.PaletteSize)
	msg[offPixelSize] = 1 // Reserved; always 1.
	binary.BigEndian.PutUint64(msg[offPayload:], h.PayloadSize)
	binary.BigEndian.PutUint32(msg[offCRC:], h.PayloadCRC32)
	msg[offECCBytes] = h.ECCBytes
	copy(msg[offFileName:offFileName+fileNameLen], name)

	return codec.Encode(msg)
}

// Decode parses a 250-byte block produced by Encode, first RS-correcting up
// to floor(eccLen/2) byte errors. It returns ErrVersionMismatch if the
// corrected encoding_version field doesn't equal EncodingVersion, and
// block.ErrUnrecoverable if the block cannot be corrected.
func Decode(codeword []byte) (*Header, int, error) {
	if len(codeword) != blockLen {
		return nil, 0, errors.Errorf("metadata: block length %d, want %d", len(codeword), blockLen)
	}

	msg, corrected, err := codec.Decode(codeword)
	if err != nil {
		return nil, 0, err
	}

	version := binary.BigEndian.Uint16(msg[offVersion:])
	if version != EncodingVersion {
		return nil, corrected, ErrVersionMismatch
	}

	h := &Header{
		PaletteSize:  binary.BigEndian.Uint16(msg[offPalette:]),
		PayloadSize:  binary.BigEndian.Uint64(msg[offPayload:]),
		PayloadCRC32: binary.BigEndian.Uint32(msg[offCRC:]),
		ECCBytes:     msg[offECCBytes],
		FileName:     string(bytes.TrimRight(msg[offFileName:offFileName+fileNameLen], "\x00")),
	}
	return h, corrected, nil
}

// BlockLen is the fixed wire length of an encoded Header.
const BlockLen = blockLen
