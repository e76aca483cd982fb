/*
NAME
  config.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for a colorcast
// encode or decode run.
package config

import (
	"fmt"
	"runtime"

	"github.com/ausocean/utils/logging"
)

// Defaults for fields that may be zero-valued by a caller and are filled
// in by Validate rather than treated as fatal.
const (
	DefaultFPS      = 6
	DefaultWidth    = 3840
	DefaultHeight   = 2160
	DefaultColors   = 2
	DefaultECCBytes = 16
	DefaultCRF      = 24
	DefaultCodec    = "libx264"
)

// BlockSize is the fixed on-wire block length; it is not configurable.
const BlockSize = 128

// Config holds the parameters for a single encode or decode invocation.
// A Config is validated once, at startup, and is not updated afterwards;
// unlike a long-running capture session, a colorcast run has no cloud-driven
// reconfiguration concept.
type Config struct {
	// InputPath is the file to encode, or the video to decode.
	InputPath string

	// OutputPath is the destination video (encode) or, if non-empty,
	// overrides the file name recovered from the header (decode).
	OutputPath string

	// FPS is the frame rate passed to the muxer.
	FPS uint

	// Width and Height are the raster dimensions of every frame.
	Width, Height uint

	// Colors is the palette size, 2 or 4.
	Colors uint

	// ECCBytes is the per-block Reed-Solomon ECC byte count E. A nil
	// pointer means "unset, apply DefaultECCBytes"; an explicit 0 is a
	// distinct, invalid value (no protection) that Validate rejects.
	ECCBytes *uint

	// CRF is the muxer's constant rate factor for the per-segment encode.
	CRF uint

	// Codec names the muxer's video codec, e.g. "libx264".
	Codec string

	// Workers bounds the number of frames processed concurrently per batch.
	Workers uint

	// Logger holds an implementation of the Logger interface. This must be
	// set for a Config to be usable.
	Logger logging.Logger

	// LogLevel is the logging verbosity level; see the logging package's
	// Debug, Info, Warning, Error, Fatal enums.
	LogLevel int8
}

// multiError implements the built in error interface. multiError is used
// to collect multiple errors during validation of a Config.
type multiError []error

func (me multiError) Error() string {
	if len(me) == 0 {
		panic("config: invalid use of multiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// LogInvalidField logs that a field was bad or unset and has been defaulted,
// matching the non-fatal-default idiom used throughout this defaulting pass.
func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger != nil {
		c.Logger.Info(name+" bad or unset, defaulting", name, def)
	}
}

// Validate checks c's fields for validity, defaulting recoverable fields and
// collecting fatal problems into a returned error. Defaulting is logged via
// LogInvalidField and never itself causes Validate to fail.
func (c *Config) Validate() error {
	var errs multiError

	if c.FPS == 0 {
		c.LogInvalidField("FPS", DefaultFPS)
		c.FPS = DefaultFPS
	}
	if c.Width == 0 {
		c.LogInvalidField("Width", DefaultWidth)
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.LogInvalidField("Height", DefaultHeight)
		c.Height = DefaultHeight
	}
	if c.Colors == 0 {
		c.LogInvalidField("Colors", DefaultColors)
		c.Colors = DefaultColors
	}
	if c.Colors != 2 && c.Colors != 4 {
		errs = append(errs, fmt.Errorf("invalid Colors: %d, must be 2 or 4", c.Colors))
	}
	if c.ECCBytes == nil {
		c.LogInvalidField("ECCBytes", DefaultECCBytes)
		def := uint(DefaultECCBytes)
		c.ECCBytes = &def
	} else if *c.ECCBytes == 0 {
		errs = append(errs, fmt.Errorf("invalid ECCBytes: 0 gives no protection, must be in [1,%d]", BlockSize-2))
	} else if *c.ECCBytes > BlockSize-2 {
		errs = append(errs, fmt.Errorf("invalid ECCBytes: %d, must be in [1,%d]", *c.ECCBytes, BlockSize-2))
	}
	if c.CRF == 0 {
		c.LogInvalidField("CRF", DefaultCRF)
		c.CRF = DefaultCRF
	}
	if c.Codec == "" {
		c.LogInvalidField("Codec", DefaultCodec)
		c.Codec = DefaultCodec
	}
	if c.Workers == 0 {
		n := runtime.NumCPU()
		c.LogInvalidField("Workers", n)
		c.Workers = uint(n)
	}
	if c.Logger == nil {
		errs = append(errs, fmt.Errorf("Config.Logger must be set"))
	}

	if len(errs) != 0 {
		return errs
	}
	return nil
}

// ContentBytes is the per-block content length C given the configured ECC
// byte count E. It must only be called after Validate has run.
func (c *Config) ContentBytes() int {
	return BlockSize - int(*c.ECCBytes)
}
