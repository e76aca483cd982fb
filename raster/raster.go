/*
NAME
  raster.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package raster assembles a list of Reed-Solomon blocks into a fixed-size
// pixel image, and disassembles an observed image back into blocks,
// snapping each pixel to its nearest palette entry on the way.
package raster

import (
	"image/color"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/colorcast/codec/bitpack"
	"github.com/ausocean/colorcast/codec/block"
	"github.com/ausocean/colorcast/codec/palette"
)

// Image is an owned, self-contained W*H RGBA raster: a worker's assembled
// output, or the decoder's input read back from the muxer. It intentionally
// does not implement image.Image so that a task's result can't alias a
// buffer shared with the orchestrator.
type Image struct {
	W, H int
	Pix  []color.RGBA // Row-major, length W*H.
}

// NewImage allocates a zeroed w*h Image.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]color.RGBA, w*h)}
}

// Codec reads and writes an Image to the external image file format the
// muxer expects for a single frame.
type Codec interface {
	Encode(w io.Writer, img *Image) error
	Decode(r io.Reader) (*Image, error)
}

// BlocksPerFrame returns floor(w*h*bpp/8/BlockSize), the number of
// BlockSize-byte blocks that fit in one w-by-h raster at the given palette's
// bits-per-pixel.
func BlocksPerFrame(w, h, bpp int) int {
	return (w * h * bpp) / 8 / block.BlockSize
}

// Assemble concatenates blocks (each already RS-encoded to block.BlockSize
// bytes) into a w-by-h raster using pal as the color alphabet. Residual
// pixels beyond the packed data are set to palette index 0.
func Assemble(blocks [][]byte, w, h int, pal palette.Palette) (*Image, error) {
	buf := make([]byte, 0, len(blocks)*block.BlockSize)
	for _, b := range blocks {
		if len(b) != block.BlockSize {
			return nil, errors.Errorf("raster: block length %d, want %d", len(b), block.BlockSize)
		}
		buf = append(buf, b...)
	}
	return AssembleBytes(buf, w, h, pal)
}

// AssembleBytes packs buf into a w-by-h raster using pal, without any
// assumption about buf's internal block structure. It is Assemble's
// underlying primitive, also used directly for the metadata frame, whose
// single block is 250 bytes rather than the data path's BlockSize.
func AssembleBytes(buf []byte, w, h int, pal palette.Palette) (*Image, error) {
	bpp := pal.BitsPerPixel()
	indices, err := bitpack.Pack(bpp, buf)
	if err != nil {
		return nil, err
	}

	img := NewImage(w, h)
	for k := range img.Pix {
		if k < len(indices) {
			img.Pix[k] = pal[indices[k]]
		} else {
			img.Pix[k] = pal[0]
		}
	}
	return img, nil
}

// Result is the outcome of decoding a single block within a frame: the
// block's index within the frame, the recovered content bytes, the number
// of corrected symbols, and whether the block was unrecoverable (in which
// case Content holds the raw content prefix, passed through as-is).
type Result struct {
	Index         int
	Content       []byte
	Corrected     int
	Unrecoverable bool
}

// DisassembleBytes reads img's w*h pixels (snapping each to the nearest
// entry of pal, recording outcomes in stats if stats is non-nil), unpacks
// them into a byte buffer, and returns its first n bytes. It is
// Disassemble's underlying primitive, also used directly to recover the
// metadata frame's raw 250-byte block.
func DisassembleBytes(img *Image, pal palette.Palette, n int, stats *palette.Stats) ([]byte, error) {
	if len(img.Pix) != img.W*img.H {
		return nil, errors.Errorf("raster: image has %d pixels, want %d", len(img.Pix), img.W*img.H)
	}

	bpp := pal.BitsPerPixel()
	indices := make([]int, len(img.Pix))
	for i, px := range img.Pix {
		idx, _ := palette.Snap(pal, px, stats)
		indices[i] = idx
	}

	buf, err := bitpack.Unpack(bpp, indices)
	if err != nil {
		return nil, err
	}
	if len(buf) < n {
		return nil, errors.Errorf("raster: unpacked %d bytes, want at least %d", len(buf), n)
	}
	return buf[:n], nil
}

// Disassemble reads img's w*h pixels (snapping each to the nearest entry of
// pal, recording outcomes in stats if stats is non-nil), unpacks them into a
// byte buffer, takes the first blocksPerFrame*BlockSize bytes, and
// RS-decodes each BlockSize-byte block independently using a codec for
// message length (BlockSize-eccBytes) and ECC length eccBytes.
func Disassemble(img *Image, pal palette.Palette, blocksPerFrame, eccBytes int, stats *palette.Stats) ([]Result, error) {
	want := blocksPerFrame * block.BlockSize
	buf, err := DisassembleBytes(img, pal, want, stats)
	if err != nil {
		return nil, err
	}

	c := block.BlockSize - eccBytes
	rs, err := block.NewCodec(c, eccBytes)
	if err != nil {
		return nil, err
	}

	results := make([]Result, blocksPerFrame)
	for i := 0; i < blocksPerFrame; i++ {
		codeword := buf[i*block.BlockSize : (i+1)*block.BlockSize]
		msg, corrected, err := rs.Decode(codeword)
		if err == block.ErrUnrecoverable {
			results[i] = Result{Index: i, Content: append([]byte(nil), codeword[:c]...), Unrecoverable: true}
			continue
		}
		if err != nil {
			return nil, err
		}
		results[i] = Result{Index: i, Content: msg, Corrected: corrected}
	}
	return results, nil
}
