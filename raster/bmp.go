/*
NAME
  bmp.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package raster

import (
	"image"
	"image/color"
	"io"

	"golang.org/x/image/bmp"
)

// BMPCodec is the default Codec, reading and writing the uncompressed image
// format the per-frame muxer invocation uses for lossless handoff of a
// single raster.
type BMPCodec struct{}

// Encode writes img as a 24-bit BMP.
func (BMPCodec) Encode(w io.Writer, img *Image) error {
	dst := image.NewRGBA(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			dst.Set(x, y, img.Pix[y*img.W+x])
		}
	}
	return bmp.Encode(w, dst)
}

// Decode reads a BMP image back into an owned Image.
func (BMPCodec) Decode(r io.Reader) (*Image, error) {
	src, err := bmp.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	img := NewImage(b.Dx(), b.Dy())
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			rr, gg, bb, aa := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			img.Pix[y*img.W+x] = color.RGBA{
				R: uint8(rr >> 8),
				G: uint8(gg >> 8),
				B: uint8(bb >> 8),
				A: uint8(aa >> 8),
			}
		}
	}
	return img, nil
}
