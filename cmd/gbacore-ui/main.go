// Command gbacore-ui is the windowed ebiten frontend around internal/gba.Machine.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/gba-emu/core/internal/gba"
	"github.com/gba-emu/core/internal/platform"
	"golang.org/x/sync/errgroup"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gba)")
	biosPath := flag.String("bios", "", "optional GBA BIOS image")
	scale := flag.Int("scale", 3, "window scale")
	title := flag.String("title", "gbacore", "window title")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}

	rom, bios, err := loadImages(*romPath, *biosPath)
	if err != nil {
		log.Fatal(err)
	}

	m := gba.New()
	m.Logger = log.Default()
	if err := m.LoadROM(rom); err != nil {
		log.Fatalf("load rom: %v", err)
	}
	if bios != nil {
		if err := m.LoadBIOS(bios); err != nil {
			log.Fatalf("load bios: %v", err)
		}
	}

	game := platform.New(platform.Config{Title: *title, Scale: *scale}, m)
	if err := game.Run(); err != nil {
		log.Fatal(err)
	}
}

// loadImages reads the ROM and optional BIOS concurrently, the same fan-out
// shape as cmd/gbacore-run.
func loadImages(romPath, biosPath string) (rom, bios []byte, err error) {
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		rom, err = os.ReadFile(romPath)
		if err != nil {
			return err
		}
		return nil
	})
	if biosPath != "" {
		g.Go(func() error {
			var err error
			bios, err = os.ReadFile(biosPath)
			if err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return rom, bios, nil
}
