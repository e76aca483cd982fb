/*
NAME
  pipeline_test.go

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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ausocean/colorcast/codec/block"
	"github.com/ausocean/colorcast/codec/metadata"
	"github.com/ausocean/colorcast/codec/palette"
	"github.com/ausocean/colorcast/config"
	"github.com/ausocean/colorcast/raster"
	"github.com/ausocean/utils/logging"
)

// memMuxer is an in-memory muxer.Muxer used to exercise the orchestrator
// without shelling out to a real video tool: it keeps every segment's
// raster in a map keyed by its assigned global frame index.
type memMuxer struct {
	mu       sync.Mutex
	segments map[string]*raster.Image
	order    []int
	final    bool
}

func newMemMuxer() *memMuxer {
	return &memMuxer{segments: make(map[string]*raster.Image)}
}

func (m *memMuxer) EncodeSegment(ctx context.Context, img *raster.Image, index int, fps, crf uint, codec string) (string, error) {
	name := fmt.Sprintf("%d", index)
	m.mu.Lock()
	m.segments[name] = img
	m.mu.Unlock()
	return name, nil
}

func (m *memMuxer) Append(ctx context.Context, segment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var idx int
	fmt.Sscanf(segment, "%d", &idx)
	m.order = append(m.order, idx)
	return nil
}

func (m *memMuxer) Finalize(ctx context.Context) error {
	m.final = true
	return nil
}

func (m *memMuxer) FrameCount(ctx context.Context) (int, error) {
	return len(m.order), nil
}

func (m *memMuxer) ExtractFrames(ctx context.Context, start, count int) ([]*raster.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	imgs := make([]*raster.Image, count)
	for i := 0; i < count; i++ {
		idx := m.order[start+i]
		imgs[i] = m.segments[fmt.Sprintf("%d", idx)]
	}
	return imgs, nil
}

func (m *memMuxer) Close() error { return nil }

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func eccBytes(v uint) *uint { return &v }

func roundTrip(t *testing.T, payload []byte) []byte {
	t.Helper()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(inPath, payload, 0o644); err != nil {
		t.Fatalf("could not write input fixture: %v", err)
	}
	outPath := filepath.Join(dir, "output.bin")

	encCfg := &config.Config{
		InputPath: inPath,
		Width:     128,
		Height:    128,
		Colors:    2,
		ECCBytes:  eccBytes(16),
		Workers:   4,
		Logger:    testLogger(),
	}
	mux := newMemMuxer()
	enc, err := NewEncoder(encCfg, mux)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if _, err := enc.Run(context.Background()); err != nil {
		t.Fatalf("Encoder.Run failed: %v", err)
	}
	if !mux.final {
		t.Error("muxer was never finalized")
	}

	decCfg := &config.Config{
		InputPath:  inPath,
		OutputPath: outPath,
		Width:      128,
		Height:     128,
		Workers:    4,
		Logger:     testLogger(),
	}
	dec, err := NewDecoder(decCfg, mux)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	counters, err := dec.Run(context.Background())
	if err != nil {
		t.Fatalf("Decoder.Run failed: %v", err)
	}
	if counters.ChecksumMismatch {
		t.Error("unexpected checksum mismatch")
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("could not read decoded output: %v", err)
	}
	return got
}

func TestRoundTripTinyText(t *testing.T) {
	payload := []byte("hello\n")
	got := roundTrip(t, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("got %x, want %x", got, payload)
	}
}

func TestRoundTripEmptyFile(t *testing.T) {
	got := roundTrip(t, nil)
	if len(got) != 0 {
		t.Errorf("got length %d, want 0", len(got))
	}
}

func TestRoundTripExactMultiple(t *testing.T) {
	// W=128,H=128,palette=2,E=16 => C=112, blocksPerFrame=16,
	// contentBytesPerFrame=1792; 14336 = 8*1792 is an exact multiple.
	payload := bytes.Repeat([]byte{0xAB}, 8*1792)
	got := roundTrip(t, payload)
	if !bytes.Equal(got, payload) {
		t.Errorf("mismatch over %d bytes", len(payload))
	}
}

func TestNameTooLong(t *testing.T) {
	dir := t.TempDir()
	name := make([]byte, 201)
	for i := range name {
		name[i] = 'a'
	}
	inPath := filepath.Join(dir, string(name))
	if err := os.WriteFile(inPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("could not write input fixture: %v", err)
	}

	cfg := &config.Config{
		InputPath: inPath,
		Width:     128,
		Height:    128,
		Colors:    2,
		ECCBytes:  eccBytes(16),
		Workers:   1,
		Logger:    testLogger(),
	}
	mux := newMemMuxer()
	enc, err := NewEncoder(cfg, mux)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	_, err = enc.Run(context.Background())
	if err != ErrNameTooLong {
		t.Fatalf("got err %v, want ErrNameTooLong", err)
	}
}

// TestRoundTripSinglePixelPaletteMiss flips one pixel's color slightly off
// its palette entry, without changing which entry it's nearest to, so that
// exactly one palette miss is recorded but the recovered content is
// unaffected.
func TestRoundTripSinglePixelPaletteMiss(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "input.bin")
	payload := make([]byte, 10*1024)
	for i := range payload {
		payload[i] = byte(i*37 + 11)
	}
	if err := os.WriteFile(inPath, payload, 0o644); err != nil {
		t.Fatalf("could not write input fixture: %v", err)
	}
	outPath := filepath.Join(dir, "output.bin")

	encCfg := &config.Config{
		InputPath: inPath,
		Width:     128,
		Height:    128,
		Colors:    2,
		ECCBytes:  eccBytes(16),
		Workers:   4,
		Logger:    testLogger(),
	}
	mux := newMemMuxer()
	enc, err := NewEncoder(encCfg, mux)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if _, err := enc.Run(context.Background()); err != nil {
		t.Fatalf("Encoder.Run failed: %v", err)
	}

	// Nudge one pixel in the first data frame off its exact palette value
	// while staying nearer to it than to any other entry, so the snap still
	// resolves to the same index.
	mux.mu.Lock()
	img := mux.segments["1"]
	if img.Pix[0] == palette.Palette2[0] {
		img.Pix[0].R = 10
	} else {
		img.Pix[0].R = 245
	}
	mux.mu.Unlock()

	decCfg := &config.Config{
		InputPath:  inPath,
		OutputPath: outPath,
		Width:      128,
		Height:     128,
		Workers:    4,
		Logger:     testLogger(),
	}
	dec, err := NewDecoder(decCfg, mux)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	counters, err := dec.Run(context.Background())
	if err != nil {
		t.Fatalf("Decoder.Run failed: %v", err)
	}
	if counters.Palette.Estimated < 1 {
		t.Errorf("got Palette.Estimated=%d, want >= 1", counters.Palette.Estimated)
	}
	if counters.ChecksumMismatch {
		t.Error("unexpected checksum mismatch")
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("could not read decoded output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("a sub-threshold palette miss must not change the recovered bytes")
	}
}

// TestRoundTripUnrecoverableBlock flips 8 bytes within a single E=4 block
// (exceeding its floor(E/2)=2 byte correction capacity), and checks that
// decode still proceeds, counts exactly one unrecoverable block, and that
// the output differs from the input only within that block's content range.
func TestRoundTripUnrecoverableBlock(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "input.bin")
	payload := bytes.Repeat([]byte{0x5A}, 4000)
	if err := os.WriteFile(inPath, payload, 0o644); err != nil {
		t.Fatalf("could not write input fixture: %v", err)
	}
	outPath := filepath.Join(dir, "output.bin")

	const ecc = 4
	encCfg := &config.Config{
		InputPath: inPath,
		Width:     128,
		Height:    128,
		Colors:    2,
		ECCBytes:  eccBytes(ecc),
		Workers:   4,
		Logger:    testLogger(),
	}
	mux := newMemMuxer()
	enc, err := NewEncoder(encCfg, mux)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if _, err := enc.Run(context.Background()); err != nil {
		t.Fatalf("Encoder.Run failed: %v", err)
	}

	// Block 0 of frame 1 occupies the raster's first BlockSize*8 pixels at
	// 1 bit per pixel. Flip one bit (pixel) in each of 8 distinct bytes of
	// that block, well past its correction capacity.
	mux.mu.Lock()
	img := mux.segments["1"]
	for b := 0; b < 8; b++ {
		px := b * 8
		if img.Pix[px] == palette.Palette2[0] {
			img.Pix[px] = palette.Palette2[1]
		} else {
			img.Pix[px] = palette.Palette2[0]
		}
	}
	mux.mu.Unlock()

	decCfg := &config.Config{
		InputPath:  inPath,
		OutputPath: outPath,
		Width:      128,
		Height:     128,
		Workers:    4,
		Logger:     testLogger(),
	}
	dec, err := NewDecoder(decCfg, mux)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	counters, err := dec.Run(context.Background())
	if err != nil {
		t.Fatalf("Decoder.Run failed: %v", err)
	}
	if counters.BlockUnrecoverable != 1 {
		t.Fatalf("got BlockUnrecoverable=%d, want 1", counters.BlockUnrecoverable)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("could not read decoded output: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("got length %d, want %d", len(got), len(payload))
	}
	c := 128 - ecc
	if bytes.Equal(got[:c], payload[:c]) {
		t.Error("expected the corrupted block's content to differ from the input")
	}
	if !bytes.Equal(got[c:], payload[c:]) {
		t.Error("expected content outside the corrupted block to be unaffected")
	}
}

// TestDecodeVersionMismatchAbortsBeforeOutput synthesizes a metadata frame
// carrying a future encoding_version with an otherwise internally-consistent
// ECC, and checks that decode aborts before ever creating the output file.
func TestDecodeVersionMismatchAbortsBeforeOutput(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "input.bin")
	payload := []byte("version guard\n")
	if err := os.WriteFile(inPath, payload, 0o644); err != nil {
		t.Fatalf("could not write input fixture: %v", err)
	}
	outPath := filepath.Join(dir, "output.bin")

	encCfg := &config.Config{
		InputPath: inPath,
		Width:     128,
		Height:    128,
		Colors:    2,
		ECCBytes:  eccBytes(16),
		Workers:   4,
		Logger:    testLogger(),
	}
	mux := newMemMuxer()
	enc, err := NewEncoder(encCfg, mux)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	if _, err := enc.Run(context.Background()); err != nil {
		t.Fatalf("Encoder.Run failed: %v", err)
	}

	// Build a header message with the same layout metadata.Header.Encode
	// uses, but with a version one past the implementation constant, then
	// RS-encode it directly so the substituted frame carries a consistent,
	// correctable codeword rather than a post-hoc corrupted byte (which RS
	// would simply correct back to the true version).
	msg := make([]byte, block.MetadataMessageLen)
	binary.BigEndian.PutUint16(msg[0:], metadata.EncodingVersion+1)
	binary.BigEndian.PutUint16(msg[2:], 2) // palette size
	msg[4] = 1                             // reserved pixel size
	binary.BigEndian.PutUint64(msg[5:], uint64(len(payload)))
	binary.BigEndian.PutUint32(msg[13:], 0) // CRC32, irrelevant: abort happens first
	msg[17] = 16                            // ECCBytes
	copy(msg[18:18+200], []byte("input.bin"))

	rs, err := block.NewCodec(block.MetadataMessageLen, block.MetadataECCLen)
	if err != nil {
		t.Fatalf("block.NewCodec failed: %v", err)
	}
	codeword, err := rs.Encode(msg)
	if err != nil {
		t.Fatalf("rs.Encode failed: %v", err)
	}
	img, err := raster.AssembleBytes(codeword, 128, 128, palette.Palette2)
	if err != nil {
		t.Fatalf("raster.AssembleBytes failed: %v", err)
	}

	mux.mu.Lock()
	mux.segments["0"] = img
	mux.mu.Unlock()

	decCfg := &config.Config{
		InputPath:  inPath,
		OutputPath: outPath,
		Width:      128,
		Height:     128,
		Workers:    4,
		Logger:     testLogger(),
	}
	dec, err := NewDecoder(decCfg, mux)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	_, err = dec.Run(context.Background())
	if err != ErrVersionMismatch {
		t.Fatalf("got err %v, want ErrVersionMismatch", err)
	}

	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("decode must not create an output file before the version check passes")
	}
}
