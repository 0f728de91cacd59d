// Package main provides a command line converter for single sticker files.
//
// Usage:
//
//	stickerconv convert --in <file> [--out <dir>] [--set-name <name>] [--unique-id <id>]
//
// Exit codes:
//   - 0: artifact written
//   - 1: conversion or usage error
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/maauso/sticker-bridge/internal/convert"
	"github.com/maauso/sticker-bridge/internal/job/id"
	"github.com/maauso/sticker-bridge/internal/media"
	"github.com/maauso/sticker-bridge/internal/storage"
)

const version = "0.1.0"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "stickerconv",
		Usage:     "Convert Telegram sticker files for Discord",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			convertCommand(),
		},
		// main reports the error and sets the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "Convert one sticker file and write the artifact",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "in",
				Usage:    "Path to the sticker file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory the artifact is written to",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "set-name",
				Usage: "Sticker set name used to label the artifact",
			},
			&cli.StringFlag{
				Name:  "unique-id",
				Usage: "Stable unique file id used to label the artifact",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Declared file name of a video",
			},
			&cli.StringFlag{
				Name:  "mime",
				Usage: "Declared media type, e.g. video/mp4",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Canvas edge in pixels",
				Value: media.DefaultCanvasSize,
			},
			&cli.Float64Flag{
				Name:  "fps",
				Usage: "Frame rate assumed when a video's rate cannot be probed",
				Value: convert.DefaultFrameRate,
			},
			&cli.StringFlag{
				Name:  "ffmpeg",
				Usage: "Path to the ffmpeg binary",
				Value: "ffmpeg",
			},
			&cli.StringFlag{
				Name:  "ffprobe",
				Usage: "Path to the ffprobe binary",
				Value: "ffprobe",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log conversion details to stderr",
			},
		},
		Action: convertAction,
	}
}

func convertAction(c *cli.Context) error {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("read input: %v", err), 1)
	}

	root, err := os.MkdirTemp("", "stickerconv-")
	if err != nil {
		return cli.Exit(fmt.Sprintf("create workspace root: %v", err), 1)
	}
	defer func() { _ = os.RemoveAll(root) }()

	store, err := storage.NewLocalStorage(root, storage.WithLogger(logger))
	if err != nil {
		return cli.Exit(fmt.Sprintf("create workspace root: %v", err), 1)
	}

	converter := convert.NewConverter(store,
		media.NewFFmpegExtractor(c.String("ffmpeg"), c.String("ffprobe")),
		convert.WithCanvasSize(c.Int("size")),
		convert.WithDefaultFrameRate(c.Float64("fps")),
		convert.WithLogger(logger),
	)

	art, err := converter.Convert(c.Context, convert.SourceMedia{
		Data:     data,
		JobID:    id.Generate(),
		UniqueID: c.String("unique-id"),
		SetName:  c.String("set-name"),
		FileName: c.String("name"),
		MimeType: c.String("mime"),
	})
	if err != nil {
		logger.Debug("conversion failed", slog.String("error", err.Error()))
		return cli.Exit(convert.UserMessage(err), 1)
	}

	out := filepath.Join(c.String("out"), art.FileName)
	if err := os.WriteFile(out, art.Data, 0o644); err != nil { // #nosec G306 - artifacts are meant to be shared
		return cli.Exit(fmt.Sprintf("write artifact: %v", err), 1)
	}

	_, err = fmt.Fprintln(c.App.Writer, out)
	return err
}
