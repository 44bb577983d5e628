// Command gbacore-run is a headless CLI stepper around internal/gba.Machine,
// replacing cpurunner's GB-specific serial-port pass/fail harness (the GBA
// has no equivalent serial test convention) with an address+value poke watch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gba-emu/core/internal/gba"
	"golang.org/x/sync/errgroup"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gba)")
	biosPath := flag.String("bios", "", "optional GBA BIOS image")
	steps := flag.Int("steps", 5_000_000, "max CPU steps to run")
	trace := flag.Bool("trace", false, "print PC/cycles per step")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s); 0 disables")
	watch := flag.String("watch", "", "stop when byte at hex address equals hex value, e.g. 02000000=01")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}

	var watchAddr uint32
	var watchVal byte
	watching := *watch != ""
	if watching {
		var err error
		watchAddr, watchVal, err = parseWatch(*watch)
		if err != nil {
			log.Fatalf("-watch: %v", err)
		}
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

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}

	var cycles int
	for i := 0; i < *steps; i++ {
		c := m.Step()
		cycles += c
		if *trace {
			fmt.Printf("step=%d cycle=%d charged=%d\n", i, m.Cycle(), c)
		}
		if watching && m.PeekByte(watchAddr) == watchVal {
			fmt.Printf("\nwatch hit: [%08X] == %02X after %d steps, %d cycles\n", watchAddr, watchVal, i+1, cycles)
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\ntimeout after %s (steps=%d cycles=%d)\n", time.Since(start).Truncate(time.Millisecond), i+1, cycles)
			os.Exit(2)
		}
	}
	fmt.Printf("\ndone: steps=%d cycles=%d elapsed=%s\n", *steps, cycles, time.Since(start).Truncate(time.Millisecond))
}

// parseWatch parses "AAAAAAAA=VV" hex address/value pairs.
func parseWatch(spec string) (addr uint32, val byte, err error) {
	var a, v uint32
	n, err := fmt.Sscanf(spec, "%x=%x", &a, &v)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected ADDR=VALUE in hex, got %q", spec)
	}
	return a, byte(v), nil
}

// loadImages reads the ROM and optional BIOS concurrently: independent file
// I/O has no reason to serialize ahead of constructing the Machine, the one
// place in this CLI where fan-out actually pays for itself (the core itself
// stays single-threaded).
func loadImages(romPath, biosPath string) (rom, bios []byte, err error) {
	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		rom, err = os.ReadFile(romPath)
		if err != nil {
			return fmt.Errorf("read rom: %w", err)
		}
		return nil
	})
	if biosPath != "" {
		g.Go(func() error {
			var err error
			bios, err = os.ReadFile(biosPath)
			if err != nil {
				return fmt.Errorf("read bios: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return rom, bios, nil
}
