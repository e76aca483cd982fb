/*
NAME
  pipeline.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pipeline is the orchestrator: it drives the encode and decode
// state machines, reading and writing in batches of up to Config.Workers
// frames, fanning each batch out to independent worker goroutines and
// fanning back in strictly ascending global frame index before anything is
// committed downstream. No buffer crosses a worker boundary by reference;
// every task receives an owned copy of its input and returns an owned
// artifact.
package pipeline

import (
	"github.com/pkg/errors"

	"github.com/ausocean/colorcast/codec/metadata"
)

// ErrInputIO wraps a failure to open, read, create, or write a file the
// pipeline directly owns (as opposed to a muxer- or codec-level failure,
// which carry their own sentinels).
var ErrInputIO = errors.New("pipeline: input/output error")

// ErrNameTooLong is returned at encode when the input file's base name
// exceeds the header's 200-byte field.
var ErrNameTooLong = metadata.ErrNameTooLong

// ErrVersionMismatch is returned at decode when the metadata frame's
// encoding_version field does not match this build's constant.
var ErrVersionMismatch = metadata.ErrVersionMismatch

// ErrMetadataUnrecoverable is returned at decode when the metadata frame's
// Reed-Solomon block cannot be corrected.
var ErrMetadataUnrecoverable = errors.New("pipeline: metadata block unrecoverable")

// batchSize returns the number of frames to process in the next batch: up
// to workers, bounded by the number of frames remaining.
func batchSize(workers uint, remaining int) int {
	b := int(workers)
	if remaining < b {
		b = remaining
	}
	return b
}
