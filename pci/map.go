//go:build linux

package pci

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/mmio"
)

const (
	ramBAR  = "resource0" // linear framebuffer aperture
	regsBAR = "resource2" // MMIO register aperture
)

// DevMem is the physical memory device LegacyROM normally reads.
const DevMem = "/dev/mem"

// legacySize is the ISA option ROM window, 0xc0000 up to the system BIOS.
const legacySize = 0x30000

// MapRegs maps the register BAR.
func (d *Device) MapRegs() (*mmio.Mapping, error) {
	return mmio.Map(filepath.Join(d.Path, regsBAR), 0, 0)
}

// MapRAM maps the framebuffer BAR. Only the first size bytes are mapped, or
// the whole aperture if size is 0.
func (d *Device) MapRAM(size int) (*mmio.Mapping, error) {
	return mmio.Map(filepath.Join(d.Path, ramBAR), 0, size)
}

// LegacyROM finds the video BIOS the system firmware shadowed into the ISA
// option ROM window of the physical memory file at path, which is normally
// DevMem. It returns a copy of the image and its physical address.
func LegacyROM(path string) ([]byte, int, error) {
	m, err := mmio.Map(path, bios.LegacyBase, legacySize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrROM, err)
	}

	defer m.Close()

	rom, addr, err := bios.Scan(m.Mem)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrROM, err)
	}

	return bytes.Clone(rom), addr, nil
}
