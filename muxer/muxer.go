/*
NAME
  muxer.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package muxer isolates the pipeline from the external video-muxing tool:
// encoding one raster to an intra-only container segment, concatenating
// segments losslessly, and extracting frame ranges back out as rasters.
// colorcast treats segment boundaries as reliable and depends on nothing
// about the muxer beyond frame count.
package muxer

import (
	"context"

	"github.com/ausocean/colorcast/raster"
)

// Muxer is the narrow interface the pipeline requires of an external
// video-muxing tool. Every implementation owns its own temporary working
// directory and process lifecycle; callers never see the child process.
type Muxer interface {
	// EncodeSegment encodes img to a single-GOP, single-frame, intra-only
	// container segment at fps frames per second using codec at the given
	// CRF, identified afterwards by its global frame index.
	EncodeSegment(ctx context.Context, img *raster.Image, index int, fps, crf uint, codec string) (segment string, err error)

	// Append concatenates segment (produced by EncodeSegment) onto the
	// running output container without re-encoding. Segments must be
	// appended in strictly ascending index order; Append does not sort.
	Append(ctx context.Context, segment string) error

	// Finalize closes out the running output container. Append must not be
	// called afterwards.
	Finalize(ctx context.Context) error

	// FrameCount returns the container's total frame count, or a full-decode
	// fallback count if the container carries no frame-count metadata.
	FrameCount(ctx context.Context) (int, error)

	// ExtractFrames returns the raster images for frames [start, start+count)
	// in lexicographic (ascending index) order.
	ExtractFrames(ctx context.Context, start, count int) ([]*raster.Image, error)

	// Close releases the muxer's temporary working directory and any
	// in-flight child process. Called on every exit path, including
	// failures.
	Close() error
}
