package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/pci"
	"github.com/c35s/radeonfb/radeon"
)

func openLive(ctx context.Context, path string) (*device, error) {
	var (
		pd  pci.Device
		err error
	)

	if path != "" {
		pd, err = pci.Open(path)
	} else {
		pd, err = pci.First(ctx, pci.DevicesPath)
	}

	if err != nil {
		return nil, err
	}

	rom := findROM(&pd, pci.DevMem)

	regs, err := pd.MapRegs()
	if err != nil {
		return nil, err
	}

	ram, err := pd.MapRAM(0)
	if err != nil {
		regs.Close()
		return nil, err
	}

	slog.Info("radeonfb: using device", "dev", pd.Addr, "model", pd.Model)

	return &device{
		cfg: radeon.Config{
			Arch:  pd.Arch.String(),
			Model: pd.Model,
			Regs:  regs,
			RAM:   ram,
			ROM:   rom,
		},

		interactive: true,

		close: func() error {
			return errors.Join(ram.Close(), regs.Close())
		},
	}, nil
}

// findROM returns the device's expansion ROM, or the copy the system
// firmware left in legacy memory if the ROM BAR is unreadable or holds no
// valid image. It returns nil if neither is found.
func findROM(pd *pci.Device, memPath string) []byte {
	rom, err := pd.ReadROM()
	if err == nil {
		err = bios.Verify(rom)
	}

	if err == nil {
		return rom
	}

	slog.Debug("radeonfb: expansion ROM unusable, scanning legacy memory", "dev", pd.Addr, "err", err)

	rom, addr, err := pci.LegacyROM(memPath)
	if err != nil {
		slog.Warn("radeonfb: no video BIOS", "dev", pd.Addr, "err", err)
		return nil
	}

	slog.Info("radeonfb: found video BIOS in legacy memory", "addr", fmt.Sprintf("%#x", addr), "size", len(rom))

	return rom
}
