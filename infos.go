package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"retrocore/emu"
	"retrocore/hw/gb"
	"retrocore/hw/genesis"
	"retrocore/hw/smsgg"
)

// printRomInfos parses the header of every ROM concurrently and prints them
// in argument order.
func printRomInfos(w io.Writer, paths []string) error {
	infos := make([]string, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		g.Go(func() error {
			s, err := romInfos(path)
			if err != nil {
				return errors.Wrap(err, path)
			}
			infos[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, s := range infos {
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func romInfos(path string) (string, error) {
	sys, err := emu.SystemFromPath(path)
	if err != nil {
		return "", err
	}
	rom, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", path)
	fmt.Fprintf(&sb, "  system:   %s\n", sys)
	fmt.Fprintf(&sb, "  size:     %d KiB\n", len(rom)/1024)

	switch sys {
	case emu.Genesis:
		cart, err := genesis.NewCartridge(rom, nil)
		if err != nil {
			return "", err
		}
		region, ok := genesis.DetectRegion(rom)
		regionStr := region.String()
		if !ok {
			regionStr = "unknown"
		}
		fmt.Fprintf(&sb, "  title:    %s\n", genesis.Title(rom, region))
		fmt.Fprintf(&sb, "  region:   %s\n", regionStr)
		fmt.Fprintf(&sb, "  save RAM: %d bytes (persistent: %t)\n", len(cart.ExternalRAM()), cart.Persistent())
	case emu.GameBoy:
		hdr, err := gb.ParseHeader(rom)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "  title:    %s\n", hdr.Title)
		fmt.Fprintf(&sb, "  mapper:   %s\n", hdr.MBC)
		fmt.Fprintf(&sb, "  save RAM: %d bytes (battery: %t)\n", hdr.RAMSize, hdr.Battery)
	case emu.MasterSystem, emu.GameGear:
		hdr, ok := smsgg.ParseHeader(rom)
		if !ok {
			fmt.Fprintf(&sb, "  header:   none\n")
			break
		}
		fmt.Fprintf(&sb, "  header:   %s\n", hdr)
		fmt.Fprintf(&sb, "  region:   %s\n", hdr.Region())
	}
	return sb.String(), nil
}
