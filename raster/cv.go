//go:build withcv
// +build withcv

/*
NAME
  cv.go

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
	"image/color"
	"io"
	"io/ioutil"

	"gocv.io/x/gocv"

	"github.com/pkg/errors"
)

// CVCodec is an alternative Codec built on OpenCV's image I/O, selected at
// build time by the withcv tag. It buys nothing over BMPCodec for the
// uncompressed raster format this system uses, but gives a CGo-backed image
// pipeline parity check against the pure-Go path, and a hook for a future
// OpenCV-accelerated snap/assemble step.
type CVCodec struct{}

// Encode writes img as a PNG via OpenCV's IMEncode.
func (CVCodec) Encode(w io.Writer, img *Image) error {
	mat, err := toMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".png", mat)
	if err != nil {
		return errors.Wrap(err, "raster: gocv encode failed")
	}
	defer buf.Close()

	_, err = w.Write(buf.GetBytes())
	return err
}

// Decode reads a PNG via OpenCV's IMDecode.
func (CVCodec) Decode(r io.Reader) (*Image, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(err, "raster: gocv decode failed")
	}
	defer mat.Close()

	return fromMat(mat)
}

func toMat(img *Image) (gocv.Mat, error) {
	mat := gocv.NewMatWithSize(img.H, img.W, gocv.MatTypeCV8UC3)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			c := img.Pix[y*img.W+x]
			// OpenCV's native channel order is BGR.
			mat.SetUCharAt(y, x*3+0, c.B)
			mat.SetUCharAt(y, x*3+1, c.G)
			mat.SetUCharAt(y, x*3+2, c.R)
		}
	}
	return mat, nil
}

func fromMat(mat gocv.Mat) (*Image, error) {
	img := NewImage(mat.Cols(), mat.Rows())
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Pix[y*img.W+x] = color.RGBA{
				R: mat.GetUCharAt(y, x*3+2),
				G: mat.GetUCharAt(y, x*3+1),
				B: mat.GetUCharAt(y, x*3+0),
				A: 255,
			}
		}
	}
	return img, nil
}
