//go:build linux

// radeon-dump captures the registers, PLL and video BIOS of a Radeon into an
// archive that radeonfb -dump can replay against a simulated device.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/c35s/radeonfb/dump"
	"github.com/c35s/radeonfb/pci"
	"github.com/c35s/radeonfb/radeon"
)

func main() {
	var (
		devPath = flag.String("dev", "", "capture the PCI function at this sysfs path (default: the first Radeon)")
		out     = flag.String("o", "radeon.dump", "write the dump to this file")
	)

	flag.Parse()

	var (
		pd  pci.Device
		err error
	)

	if *devPath != "" {
		pd, err = pci.Open(*devPath)
	} else {
		pd, err = pci.First(context.Background(), pci.DevicesPath)
	}

	if err != nil {
		panic(err)
	}

	rom, err := pd.ReadROM()
	if err != nil {
		slog.Warn("radeon-dump: no video BIOS", "err", err)
	}

	regs, err := pd.MapRegs()
	if err != nil {
		panic(err)
	}

	defer regs.Close()

	d := dump.Capture(regs, radeon.NewVGAIO(regs, nil), rom, pd.Arch.String(), pd.Model)

	f, err := os.Create(*out)
	if err != nil {
		panic(err)
	}

	if err := dump.Write(f, d); err != nil {
		panic(err)
	}

	if err := f.Close(); err != nil {
		panic(err)
	}

	slog.Info("radeon-dump: wrote dump", "dev", pd.Addr, "arch", pd.Arch, "path", *out, "rom", len(rom))
}
