/*
NAME
  report.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package report summarizes the non-fatal counters accumulated over an
// encode or decode run: block- and palette-level error statistics logged
// once, at the end, rather than per-occurrence.
package report

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/colorcast/codec/palette"
)

// Counters accumulates the non-fatal error kinds this system defines:
// BlockUnrecoverable (§7 of the design) and the palette snap outcomes.
type Counters struct {
	BlockUnrecoverable int
	ChecksumMismatch   bool
	Palette            palette.Stats
}

// Summary is the end-of-run numeric report: exact and estimated pixel
// counts, and the mean and standard deviation of the squared-distance
// penalty incurred by every estimated (non-exact) palette snap.
type Summary struct {
	Exact, Estimated  int
	MeanDistance      float64
	StdDevDistance    float64
	BlockUnrecoverable int
	ChecksumMismatch  bool
}

// Summarize reduces c's raw counters into a Summary, computing the mean and
// standard deviation of the estimated-snap distances with gonum/stat, the
// same library this codebase's turbidity probe uses for per-run numeric
// summaries.
func Summarize(c *Counters) Summary {
	s := Summary{
		Exact:              c.Palette.Exact,
		Estimated:          c.Palette.Estimated,
		BlockUnrecoverable: c.BlockUnrecoverable,
		ChecksumMismatch:   c.ChecksumMismatch,
	}
	if len(c.Palette.Distances) > 0 {
		s.MeanDistance, s.StdDevDistance = stat.MeanStdDev(c.Palette.Distances, nil)
	}
	return s
}

// String renders s as a single human-readable line, suitable for a final
// Info log line at the end of a run.
func (s Summary) String() string {
	return fmt.Sprintf(
		"pixels exact=%d estimated=%d (mean_dist=%.2f stddev_dist=%.2f) blocks_unrecoverable=%d checksum_mismatch=%t",
		s.Exact, s.Estimated, s.MeanDistance, s.StdDevDistance, s.BlockUnrecoverable, s.ChecksumMismatch)
}
