/*
NAME
  config_test.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"bytes"
	"testing"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func TestValidateDefaults(t *testing.T) {
	c := &Config{Logger: testLogger()}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c.FPS != DefaultFPS || c.Width != DefaultWidth || c.Height != DefaultHeight ||
		c.Colors != DefaultColors || c.ECCBytes == nil || *c.ECCBytes != DefaultECCBytes || c.CRF != DefaultCRF ||
		c.Codec != DefaultCodec || c.Workers == 0 {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestValidateBadColors(t *testing.T) {
	c := &Config{Colors: 3, Logger: testLogger()}
	if err := c.Validate(); err == nil {
		t.Error("Validate succeeded, want error for Colors=3")
	}
}

func eccBytes(v uint) *uint { return &v }

func TestValidateECCBoundary(t *testing.T) {
	c := &Config{ECCBytes: eccBytes(BlockSize - 2), Logger: testLogger()}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate failed for the maximum valid ECCBytes: %v", err)
	}

	c = &Config{ECCBytes: eccBytes(BlockSize - 1), Logger: testLogger()}
	if err := c.Validate(); err == nil {
		t.Error("Validate succeeded, want error for ECCBytes exceeding BlockSize-2")
	}
}

func TestValidateZeroECCBytes(t *testing.T) {
	c := &Config{ECCBytes: eccBytes(0), Logger: testLogger()}
	if err := c.Validate(); err == nil {
		t.Error("Validate succeeded, want error for an explicit ECCBytes of 0")
	}
}

func TestValidateNoLogger(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err == nil {
		t.Error("Validate succeeded, want error for a nil Logger")
	}
}

func TestContentBytes(t *testing.T) {
	c := &Config{ECCBytes: eccBytes(16)}
	if got := c.ContentBytes(); got != BlockSize-16 {
		t.Errorf("got %d, want %d", got, BlockSize-16)
	}
}
