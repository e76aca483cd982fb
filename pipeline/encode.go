/*
NAME
  encode.go

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
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
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

// Encoder drives the Init -> MetadataEmitted -> (DataBatch)* -> Finalized
// state machine described for the encode path: it owns the input file and
// the muxer, and fans batches of frames out to independent worker
// goroutines.
type Encoder struct {
	cfg *config.Config
	mux muxer.Muxer
	pal palette.Palette
	rs  *block.Codec
}

// NewEncoder validates cfg and resolves its palette, returning an Encoder
// ready to Run against mux.
func NewEncoder(cfg *config.Config, mux muxer.Muxer) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pal, ok := palette.For(int(cfg.Colors))
	if !ok {
		return nil, errors.Errorf("pipeline: unsupported palette size %d", cfg.Colors)
	}
	rs, err := block.NewCodec(cfg.ContentBytes(), int(*cfg.ECCBytes))
	if err != nil {
		return nil, err
	}
	return &Encoder{cfg: cfg, mux: mux, pal: pal, rs: rs}, nil
}

// Run executes the full encode path: stat and checksum the input, emit the
// metadata frame, then encode and mux the payload in Workers-sized batches.
func (e *Encoder) Run(ctx context.Context) (*report.Counters, error) {
	cfg := e.cfg
	counters := &report.Counters{}

	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, errors.Wrap(ErrInputIO, err.Error())
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return nil, errors.Wrap(ErrInputIO, err.Error())
	}
	name := filepath.Base(cfg.InputPath)
	payloadSize := fi.Size()

	crc, err := streamCRC32(in)
	if err != nil {
		return nil, errors.Wrap(ErrInputIO, err.Error())
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(ErrInputIO, err.Error())
	}

	bpp := e.pal.BitsPerPixel()
	blocksPerFrame := raster.BlocksPerFrame(int(cfg.Width), int(cfg.Height), bpp)
	if blocksPerFrame == 0 {
		return nil, errors.New("pipeline: frame dimensions too small to carry a single block")
	}
	contentBytesPerFrame := blocksPerFrame * cfg.ContentBytes()

	dataFrames := int(math.Ceil(float64(payloadSize) / float64(contentBytesPerFrame)))
	if dataFrames == 0 {
		dataFrames = 1 // Boundary case: an empty input still emits one zero-padded data frame.
	}

	cfg.Logger.Info("encode starting", "input", cfg.InputPath, "payload_size", payloadSize,
		"data_frames", dataFrames, "blocks_per_frame", blocksPerFrame)

	hdr := &metadata.Header{
		PaletteSize:  uint16(cfg.Colors),
		PayloadSize:  uint64(payloadSize),
		PayloadCRC32: crc,
		ECCBytes:     uint8(*cfg.ECCBytes),
		FileName:     name,
	}
	metaCodeword, err := hdr.Encode()
	if err != nil {
		return nil, err
	}
	metaImg, err := raster.AssembleBytes(metaCodeword, int(cfg.Width), int(cfg.Height), palette.Palette2)
	if err != nil {
		return nil, err
	}
	metaSeg, err := e.mux.EncodeSegment(ctx, metaImg, 0, cfg.FPS, cfg.CRF, cfg.Codec)
	if err != nil {
		return nil, err
	}
	if err := e.mux.Append(ctx, metaSeg); err != nil {
		return nil, err
	}
	cfg.Logger.Debug("metadata frame emitted")

	global := 1
	remaining := dataFrames
	for remaining > 0 {
		batch := batchSize(cfg.Workers, remaining)
		if err := e.runBatch(ctx, in, global, batch, contentBytesPerFrame, blocksPerFrame); err != nil {
			return counters, err
		}
		global += batch
		remaining -= batch
	}

	if err := e.mux.Finalize(ctx); err != nil {
		return counters, err
	}
	cfg.Logger.Info("encode finished", "frames", dataFrames+1)
	return counters, nil
}

type frameJob struct {
	index int
	data  []byte // Owned copy of this frame's content bytes, zero-padded.
}

type frameResult struct {
	index int
	seg   string
	err   error
}

// runBatch reads up to batch frames' worth of content bytes from in,
// dispatches one worker per frame, and commits the resulting segments to
// the muxer in ascending global frame index order once every worker in the
// batch has joined.
func (e *Encoder) runBatch(ctx context.Context, in io.Reader, global, batch, contentBytesPerFrame, blocksPerFrame int) error {
	buf := make([]byte, batch*contentBytesPerFrame)
	_, err := io.ReadFull(in, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return errors.Wrap(ErrInputIO, err.Error())
	}
	// A short final read leaves the tail of buf zeroed, which is exactly
	// the zero-padding §3 requires for the last, partial frame.

	results := make(chan frameResult, batch)
	var wg sync.WaitGroup
	for i := 0; i < batch; i++ {
		job := frameJob{
			index: global + i,
			data:  append([]byte(nil), buf[i*contentBytesPerFrame:(i+1)*contentBytesPerFrame]...),
		}
		wg.Add(1)
		go func(job frameJob) {
			defer wg.Done()
			results <- e.encodeFrame(ctx, job, blocksPerFrame)
		}(job)
	}
	wg.Wait()
	close(results)

	collected := make([]frameResult, 0, batch)
	for r := range results {
		if r.err != nil {
			return r.err
		}
		collected = append(collected, r)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	for _, r := range collected {
		if err := e.mux.Append(ctx, r.seg); err != nil {
			return err
		}
	}
	return nil
}

// encodeFrame is a worker task: it owns job.data exclusively, RS-encodes
// every block, assembles the raster, and hands it to the muxer.
func (e *Encoder) encodeFrame(ctx context.Context, job frameJob, blocksPerFrame int) frameResult {
	c := e.cfg.ContentBytes()
	blocks := make([][]byte, blocksPerFrame)
	for b := 0; b < blocksPerFrame; b++ {
		content := job.data[b*c : (b+1)*c]
		codeword, err := e.rs.Encode(content)
		if err != nil {
			return frameResult{index: job.index, err: err}
		}
		blocks[b] = codeword
	}

	img, err := raster.Assemble(blocks, int(e.cfg.Width), int(e.cfg.Height), e.pal)
	if err != nil {
		return frameResult{index: job.index, err: err}
	}

	seg, err := e.mux.EncodeSegment(ctx, img, job.index, e.cfg.FPS, e.cfg.CRF, e.cfg.Codec)
	return frameResult{index: job.index, seg: seg, err: err}
}

// streamCRC32 computes the IEEE CRC32 of r's remaining bytes, reading in
// 1 MiB chunks to bound memory use for arbitrarily large inputs.
func streamCRC32(r io.Reader) (uint32, error) {
	h := crc32.NewIEEE()
	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
