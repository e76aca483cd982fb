/*
NAME
  ffmpeg.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package muxer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ausocean/colorcast/raster"
	"github.com/ausocean/utils/logging"
)

// ErrMuxerFailed is returned when the external ffmpeg/ffprobe process exits
// non-zero.
var ErrMuxerFailed = errors.New("muxer: external tool exited non-zero")

// FFMpeg implements Muxer by shelling out to the ffmpeg and ffprobe binaries
// found on PATH, the same exec.Command-and-pipe pattern this codebase's
// hardware device drivers use to wrap an external capture tool.
type FFMpeg struct {
	// outputPath is the container path: the destination Finalize writes on
	// encode, or the existing container FrameCount/ExtractFrames read from
	// on decode. A run is one direction or the other, never both.
	outputPath    string
	width, height int
	imgCodec      raster.Codec
	log           logging.Logger

	dir      string // Per-run temporary staging directory.
	segments []string
	final    bool
}

// NewFFMpeg creates a temporary staging directory under os.TempDir and
// returns an FFMpeg muxer bound to containerPath: the destination on
// encode, the source on decode. imgCodec determines the per-segment
// intermediate raster format; raster.BMPCodec{} is the usual choice.
func NewFFMpeg(containerPath string, width, height int, imgCodec raster.Codec, log logging.Logger) (*FFMpeg, error) {
	outputPath := containerPath
	dir, err := os.MkdirTemp("", "colorcast-*")
	if err != nil {
		return nil, errors.Wrap(err, "muxer: could not create staging directory")
	}
	return &FFMpeg{
		outputPath: outputPath,
		width:      width,
		height:     height,
		imgCodec:   imgCodec,
		log:        log,
		dir:        dir,
	}, nil
}

// EncodeSegment writes img to a BMP in the staging directory, then invokes
// ffmpeg to produce a single-frame, intra-only MP4 segment.
func (m *FFMpeg) EncodeSegment(ctx context.Context, img *raster.Image, index int, fps, crf uint, codec string) (string, error) {
	rawPath := filepath.Join(m.dir, fmt.Sprintf("frame-%08d.bmp", index))
	f, err := os.Create(rawPath)
	if err != nil {
		return "", errors.Wrap(err, "muxer: could not create frame file")
	}
	err = m.imgCodec.Encode(f, img)
	closeErr := f.Close()
	if err != nil {
		return "", errors.Wrap(err, "muxer: could not encode frame")
	}
	if closeErr != nil {
		return "", errors.Wrap(closeErr, "muxer: could not close frame file")
	}

	segPath := filepath.Join(m.dir, fmt.Sprintf("segment-%08d.mp4", index))
	if err := m.run(ctx, "ffmpeg", encodeSegmentArgs(rawPath, segPath, fps, crf, codec)...); err != nil {
		return "", err
	}
	return segPath, nil
}

// encodeSegmentArgs builds the ffmpeg argument list for turning rawPath
// into a single-frame, intra-only (-g 1) segment at segPath.
func encodeSegmentArgs(rawPath, segPath string, fps, crf uint, codec string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-framerate", strconv.Itoa(int(fps)),
		"-i", rawPath,
		"-frames:v", "1",
		"-c:v", codec,
		"-crf", strconv.Itoa(int(crf)),
		"-g", "1", // Single GOP, intra-only.
		"-pix_fmt", "yuv420p",
		segPath,
	}
}

// Append records segment for inclusion, in call order, at Finalize. Callers
// must invoke Append in strictly ascending global frame index order; this
// method does not itself sort.
func (m *FFMpeg) Append(ctx context.Context, segment string) error {
	m.segments = append(m.segments, segment)
	return nil
}

// Finalize concatenates the accumulated segments losslessly into
// outputPath using ffmpeg's concat demuxer, which requires no re-encoding
// since every segment shares codec parameters.
func (m *FFMpeg) Finalize(ctx context.Context) error {
	if m.final {
		return nil
	}
	listPath := filepath.Join(m.dir, "concat.txt")
	var buf bytes.Buffer
	for _, s := range m.segments {
		fmt.Fprintf(&buf, "file '%s'\n", s)
	}
	if err := os.WriteFile(listPath, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "muxer: could not write concat list")
	}

	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		m.outputPath,
	}
	if err := m.run(ctx, "ffmpeg", args...); err != nil {
		return err
	}
	m.final = true
	return nil
}

// FrameCount asks ffprobe for the output container's frame count.
func (m *FFMpeg) FrameCount(ctx context.Context) (int, error) {
	args := []string{
		"-v", "error",
		"-count_frames",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_read_frames",
		"-of", "csv=p=0",
		m.outputPath,
	}
	out, err := m.output(ctx, "ffprobe", args...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(out)))
	if err != nil {
		return 0, errors.Wrap(err, "muxer: could not parse ffprobe frame count")
	}
	return n, nil
}

// extractFramesArgs builds the ffmpeg argument list for selecting frames
// [start, start+count) from inputPath and writing them to outPattern
// (a printf-style path with a single %08d verb), one file per frame,
// in lexicographic (hence ascending index) order.
func extractFramesArgs(inputPath, outPattern string, start, count int) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-vf", fmt.Sprintf("select='between(n\\,%d\\,%d)'", start, start+count-1),
		"-vsync", "0",
		outPattern,
	}
}

// ExtractFrames extracts frames [start, start+count) from the input
// container referenced by outputPath as raster images, in ascending index
// order.
func (m *FFMpeg) ExtractFrames(ctx context.Context, start, count int) ([]*raster.Image, error) {
	pattern := filepath.Join(m.dir, fmt.Sprintf("extract-%d-%%08d.bmp", start))
	if err := m.run(ctx, "ffmpeg", extractFramesArgs(m.outputPath, pattern, start, count)...); err != nil {
		return nil, err
	}

	imgs := make([]*raster.Image, count)
	for i := 0; i < count; i++ {
		path := fmt.Sprintf(pattern, i+1)
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "muxer: could not open extracted frame")
		}
		img, err := m.imgCodec.Decode(f)
		closeErr := f.Close()
		if err != nil {
			return nil, errors.Wrap(err, "muxer: could not decode extracted frame")
		}
		if closeErr != nil {
			return nil, errors.Wrap(closeErr, "muxer: could not close extracted frame")
		}
		imgs[i] = img
	}
	return imgs, nil
}

// Close removes the staging directory and everything in it.
func (m *FFMpeg) Close() error {
	return os.RemoveAll(m.dir)
}

func (m *FFMpeg) run(ctx context.Context, name string, args ...string) error {
	_, err := m.output(ctx, name, args...)
	return err
}

func (m *FFMpeg) output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.log.Debug(name+" invocation", "args", args)
	if err := cmd.Run(); err != nil {
		m.log.Error(name+" failed", "error", err, "stderr", stderr.String())
		return nil, errors.Wrapf(ErrMuxerFailed, "%s: %v: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

var _ io.Closer = (*FFMpeg)(nil)
