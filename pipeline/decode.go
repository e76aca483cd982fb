/*
NAME
  decode.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pipeline

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/colorcast/codec/block"
	"github.com/ausocean/colorcast/codec/metadata"
	"github.com/ausocean/colorcast/codec/palette"
	"github.com/ausocean/colorcast/config"
	"github.com/ausocean/colorcast/muxer"
	"github.com/ausocean/colorcast/raster"
	"github.com/ausocean/colorcast/report"
)

// Decoder drives the Init -> MetadataRead -> (DataBatch)* -> Truncated ->
// Verified state machine described for the decode path.
type Decoder struct {
	cfg *config.Config
	mux muxer.Muxer
}

// NewDecoder validates cfg and returns a Decoder ready to Run against mux.
func NewDecoder(cfg *config.Config, mux muxer.Muxer) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{cfg: cfg, mux: mux}, nil
}

// Run executes the full decode path: read the metadata frame, derive the
// payload's parameters from it, then decode and reassemble the payload in
// Workers-sized batches, finally truncating and CRC-verifying the output.
func (d *Decoder) Run(ctx context.Context) (*report.Counters, error) {
	cfg := d.cfg
	counters := &report.Counters{}

	total, err := d.mux.FrameCount(ctx)
	if err != nil {
		return nil, err
	}
	if total < 1 {
		return nil, errors.New("pipeline: container has no frames")
	}

	metaImgs, err := d.mux.ExtractFrames(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	metaBuf, err := raster.DisassembleBytes(metaImgs[0], palette.Palette2, metadata.BlockLen, nil)
	if err != nil {
		return nil, err
	}
	hdr, _, err := metadata.Decode(metaBuf)
	switch {
	case err == metadata.ErrVersionMismatch:
		cfg.Logger.Error("metadata version mismatch, aborting before creating output")
		return nil, ErrVersionMismatch
	case err == block.ErrUnrecoverable:
		cfg.Logger.Error("metadata block unrecoverable, aborting before creating output")
		return nil, ErrMetadataUnrecoverable
	case err != nil:
		return nil, err
	}

	pal, ok := palette.For(int(hdr.PaletteSize))
	if !ok {
		return nil, errors.Errorf("pipeline: header names unsupported palette size %d", hdr.PaletteSize)
	}
	// The data frames' raster dimensions aren't in the header; they're
	// read back from the container itself via the metadata frame, which
	// the muxer guarantees has the same W*H as every data frame.
	w, h := metaImgs[0].W, metaImgs[0].H
	bpp := pal.BitsPerPixel()
	blocksPerFrame := raster.BlocksPerFrame(w, h, bpp)
	if blocksPerFrame == 0 {
		return nil, errors.New("pipeline: frame dimensions too small to carry a single block")
	}
	c := block.BlockSize - int(hdr.ECCBytes)
	contentBytesPerFrame := blocksPerFrame * c

	outPath := cfg.OutputPath
	if outPath == "" {
		outPath = hdr.FileName
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, errors.Wrap(ErrInputIO, err.Error())
	}

	cfg.Logger.Info("decode starting", "output", outPath, "payload_size", hdr.PayloadSize,
		"data_frames", total-1, "blocks_per_frame", blocksPerFrame)

	global := 1
	remaining := total - 1
	for remaining > 0 {
		batch := batchSize(cfg.Workers, remaining)
		if err := d.runBatch(ctx, out, global, batch, pal, blocksPerFrame, int(hdr.ECCBytes), contentBytesPerFrame, counters); err != nil {
			out.Close()
			return counters, err
		}
		global += batch
		remaining -= batch
	}
	if err := out.Close(); err != nil {
		return counters, errors.Wrap(ErrInputIO, err.Error())
	}

	if err := os.Truncate(outPath, int64(hdr.PayloadSize)); err != nil {
		return counters, errors.Wrap(ErrInputIO, err.Error())
	}

	actual, err := fileCRC32(outPath)
	if err != nil {
		return counters, errors.Wrap(ErrInputIO, err.Error())
	}
	if actual != hdr.PayloadCRC32 {
		counters.ChecksumMismatch = true
		cfg.Logger.Warning("checksum mismatch, output left in place", "want", hdr.PayloadCRC32, "got", actual)
	}

	cfg.Logger.Info("decode finished", "summary", report.Summarize(counters).String())
	return counters, nil
}

type decodeJob struct {
	index int
	img   *raster.Image
}

type decodeResult struct {
	index         int
	content       []byte
	unrecoverable []int // Within-frame block indices that were unrecoverable.
	stats         palette.Stats
	err           error
}

func (d *Decoder) runBatch(ctx context.Context, out *os.File, global, batch int, pal palette.Palette, blocksPerFrame, eccBytes, contentBytesPerFrame int, counters *report.Counters) error {
	imgs, err := d.mux.ExtractFrames(ctx, global, batch)
	if err != nil {
		return err
	}

	results := make(chan decodeResult, batch)
	var wg sync.WaitGroup
	for i, img := range imgs {
		job := decodeJob{index: global + i, img: img}
		wg.Add(1)
		go func(job decodeJob) {
			defer wg.Done()
			results <- d.decodeFrame(job, pal, blocksPerFrame, eccBytes, contentBytesPerFrame)
		}(job)
	}
	wg.Wait()
	close(results)

	collected := make([]decodeResult, 0, batch)
	for r := range results {
		if r.err != nil {
			return r.err
		}
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	c := block.BlockSize - eccBytes
	for _, r := range collected {
		if _, err := out.Write(r.content); err != nil {
			return errors.Wrap(ErrInputIO, err.Error())
		}
		counters.BlockUnrecoverable += len(r.unrecoverable)
		counters.Palette.Exact += r.stats.Exact
		counters.Palette.Estimated += r.stats.Estimated
		counters.Palette.Distances = append(counters.Palette.Distances, r.stats.Distances...)
		frameBase := (r.index - 1) * contentBytesPerFrame
		for _, bi := range r.unrecoverable {
			start := frameBase + bi*c
			d.cfg.Logger.Warning("block unrecoverable, passing through raw content",
				"frame", r.index, "block", bi, "byte_range_start", start, "byte_range_end", start+c)
		}
	}
	return nil
}

// decodeFrame is a worker task: it owns job.img exclusively and returns an
// owned content-byte slice plus its own palette statistics, aggregated by
// the caller only after every worker in the batch has joined.
func (d *Decoder) decodeFrame(job decodeJob, pal palette.Palette, blocksPerFrame, eccBytes, contentBytesPerFrame int) decodeResult {
	var stats palette.Stats
	results, err := raster.Disassemble(job.img, pal, blocksPerFrame, eccBytes, &stats)
	if err != nil {
		return decodeResult{index: job.index, err: err}
	}

	content := make([]byte, 0, contentBytesPerFrame)
	var unrecoverable []int
	for _, r := range results {
		content = append(content, r.Content...)
		if r.Unrecoverable {
			unrecoverable = append(unrecoverable, r.Index)
		}
	}
	return decodeResult{index: job.index, content: content, unrecoverable: unrecoverable, stats: stats}
}

func fileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return streamCRC32(f)
}
