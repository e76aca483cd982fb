/*
NAME
  main.go

AUTHORS
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main is colorcast, a CLI that encodes an arbitrary file into a
// sequence of colored raster frames muxed into a video, and decodes that
// video back into the original file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/colorcast/config"
	"github.com/ausocean/colorcast/muxer"
	"github.com/ausocean/colorcast/pipeline"
	"github.com/ausocean/colorcast/raster"
	"github.com/ausocean/colorcast/report"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v1.0.0"

// Logging configuration.
const (
	logPath      = "colorcast.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

const pkg = "colorcast: "

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	sub := os.Args[1]

	if sub == "-version" || sub == "--version" {
		fmt.Println(version)
		os.Exit(0)
	}
	if sub != "encode" && sub != "decode" {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet(sub, flag.ExitOnError)
	fps := fs.Uint("fps", config.DefaultFPS, "frames per second")
	width := fs.Uint("width", config.DefaultWidth, "frame width")
	height := fs.Uint("height", config.DefaultHeight, "frame height")
	colors := fs.Uint("colors", config.DefaultColors, "palette size, 2 or 4")
	eccBytes := fs.Uint("ecc-bytes", config.DefaultECCBytes, "per-block ECC byte count")
	crf := fs.Uint("crf", config.DefaultCRF, "muxer constant rate factor")
	codec := fs.String("codec", config.DefaultCodec, "muxer video codec")
	workers := fs.Uint("threads", uint(runtime.NumCPU()), "worker concurrency")
	fs.Parse(os.Args[2:])

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	args := fs.Args()

	switch sub {
	case "encode":
		if len(args) != 2 {
			usage()
			os.Exit(1)
		}
		cfg := &config.Config{
			InputPath:  args[0],
			OutputPath: args[1],
			FPS:        *fps,
			Width:      *width,
			Height:     *height,
			Colors:     *colors,
			ECCBytes:   eccBytes,
			CRF:        *crf,
			Codec:      *codec,
			Workers:    *workers,
			Logger:     log,
			LogLevel:   logVerbosity,
		}
		run(log, func() error { return runEncode(cfg) })
	case "decode":
		if len(args) != 1 {
			usage()
			os.Exit(1)
		}
		cfg := &config.Config{
			InputPath: args[0],
			Workers:   *workers,
			Logger:    log,
			LogLevel:  logVerbosity,
		}
		run(log, func() error { return runDecode(cfg) })
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: colorcast encode <INPUT> <OUTPUT> [flags]")
	fmt.Fprintln(os.Stderr, "       colorcast decode <INPUT> [flags]")
	flag.PrintDefaults()
}

func run(log logging.Logger, f func() error) {
	if err := f(); err != nil {
		log.Error(pkg+"fatal error", "error", err.Error())
		os.Exit(1)
	}
}

func runEncode(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Logger.SetLevel(cfg.LogLevel)
	mux, err := muxer.NewFFMpeg(cfg.OutputPath, int(cfg.Width), int(cfg.Height), raster.BMPCodec{}, cfg.Logger)
	if err != nil {
		return err
	}
	defer mux.Close()

	enc, err := pipeline.NewEncoder(cfg, mux)
	if err != nil {
		return err
	}
	counters, err := enc.Run(context.Background())
	if err != nil {
		return err
	}
	cfg.Logger.Info(pkg+"encode complete", "summary", report.Summarize(counters).String())
	return nil
}

func runDecode(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Logger.SetLevel(cfg.LogLevel)
	mux, err := muxer.NewFFMpeg(cfg.InputPath, int(cfg.Width), int(cfg.Height), raster.BMPCodec{}, cfg.Logger)
	if err != nil {
		return err
	}
	defer mux.Close()

	dec, err := pipeline.NewDecoder(cfg, mux)
	if err != nil {
		return err
	}
	_, err = dec.Run(context.Background())
	return err
}
