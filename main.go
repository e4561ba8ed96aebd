package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"

	"retrocore/emu"
	"retrocore/emu/log"
	"retrocore/emu/wavout"
)

func main() {
	cfg := parseArgs(os.Args[1:])

	switch cfg.mode {
	case versionMode:
		printVersion(os.Stdout)
	case romInfosMode:
		checkf(printRomInfos(os.Stdout, cfg.RomInfos.RomPaths), "failed to read rom infos")
	case runMode:
		checkf(run(cfg), "emulation failed")
	}
}

func loadConfig(path string) emu.Config {
	if path == "" {
		return emu.LoadConfigOrDefault()
	}
	ecfg, err := emu.LoadConfig(path)
	checkf(err, "failed to load configuration %s", path)
	return ecfg
}

func run(cfg CLI) error {
	ecfg := loadConfig(cfg.Config)

	sys, err := emu.ParseSystem(cfg.Run.System)
	if err != nil {
		return err
	}

	var opts emu.Options
	var wav *wavout.Writer
	if cfg.Run.Wav != nil {
		wav = wavout.New(cfg.Run.Wav, ecfg.SampleRate())
		opts.Audio = wav
	}

	e, err := emu.Launch(cfg.Run.RomPath, sys, ecfg, opts)
	if err != nil {
		return err
	}

	if cfg.Run.LoadSnapshot != "" {
		buf, err := os.ReadFile(cfg.Run.LoadSnapshot)
		if err != nil {
			return err
		}
		if err := e.LoadSnapshot(buf); err != nil {
			return err
		}
		log.ModEmu.InfoZ("snapshot loaded").String("path", cfg.Run.LoadSnapshot).End()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := e.RunFrames(ctx, cfg.Run.Frames)
	if ctx.Err() != nil {
		// Interrupted by the user.
		runErr = nil
	}
	log.ModEmu.InfoZ("emulation stopped").Int("frames", e.Frames()).End()

	if wav != nil {
		if err := wav.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if cfg.Run.Snapshot != "" {
		buf, err := e.SaveSnapshot()
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Run.Snapshot, buf, 0o644); err != nil {
			return err
		}
		log.ModEmu.InfoZ("snapshot written").String("path", cfg.Run.Snapshot).Int("size", len(buf)).End()
	}
	return runErr
}

func printVersion(w io.Writer) {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Fprintln(w, "retrocore", version)
}
