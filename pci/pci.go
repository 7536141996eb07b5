// Package pci finds ATI Radeon display controllers in sysfs and gives access
// to their BARs and expansion ROM.
package pci

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/c35s/radeonfb/radeon"
	"golang.org/x/sync/errgroup"
)

// DevicesPath is where the kernel lists PCI functions.
const DevicesPath = "/sys/bus/pci/devices"

const (
	VendorATI    = 0x1002
	ClassDisplay = 0x03
)

var (
	ErrNotFound = errors.New("pci: no Radeon found")
	ErrROM      = errors.New("pci: can't read expansion ROM")
)

// Device is a PCI function that looks like a supported Radeon.
type Device struct {
	Addr     string // domain:bus:slot.func, e.g. 0000:01:00.0
	Path     string // sysfs directory
	DeviceID uint16
	Class    uint32
	Arch     radeon.Arch
	Model    string
}

type chip struct {
	arch  radeon.Arch
	model string
}

var chips = map[uint16]chip{
	0x5144: {radeon.R100, "Radeon 7200 QD"},
	0x5145: {radeon.R100, "Radeon 7200 QE"},
	0x5146: {radeon.R100, "Radeon 7200 QF"},
	0x5147: {radeon.R100, "Radeon 7200 QG"},
	0x5159: {radeon.RV100, "Radeon 7000 QY"},
	0x515a: {radeon.RV100, "Radeon 7000 QZ"},
	0x4c59: {radeon.M6, "Mobility Radeon LY"},
	0x4c5a: {radeon.M6, "Mobility Radeon LZ"},
	0x5157: {radeon.RV200, "Radeon 7500 QW"},
	0x5158: {radeon.RV200, "Radeon 7500 QX"},
	0x4c57: {radeon.M7, "Mobility Radeon 7500 LW"},
	0x4c58: {radeon.M7, "Mobility FireGL 7800 LX"},
	0x5148: {radeon.R200, "FireGL 8800 QH"},
	0x514c: {radeon.R200, "Radeon 8500 QL"},
	0x514e: {radeon.R200, "Radeon 8500 QN"},
	0x514f: {radeon.R200, "Radeon 8500 QO"},
	0x4966: {radeon.RV250, "Radeon 9000 If"},
	0x4967: {radeon.RV250, "Radeon 9000 Ig"},
	0x4c64: {radeon.M9, "Mobility FireGL 9000 Ld"},
	0x4c66: {radeon.M9, "Mobility Radeon 9000 Lf"},
	0x4c67: {radeon.M9, "Mobility Radeon 9000 Lg"},
	0x4144: {radeon.R300, "Radeon 9500 AD"},
	0x4145: {radeon.R300, "Radeon 9500 AE"},
	0x4e44: {radeon.R300, "Radeon 9700 ND"},
	0x4e45: {radeon.R300, "Radeon 9500 NE"},
}

// Lookup returns the family and marketing name of a device ID.
func Lookup(id uint16) (radeon.Arch, string, bool) {
	c, ok := chips[id]
	return c.arch, c.model, ok
}

// Scan lists the supported Radeons under root, which is normally
// DevicesPath. Functions are probed concurrently and returned in address
// order.
func Scan(ctx context.Context, root string) ([]Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("pci: scan %s: %w", root, err)
	}

	found := make([]*Device, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			dev, err := probe(filepath.Join(root, e.Name()))
			if err != nil {
				return err
			}

			found[i] = dev
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var devs []Device
	for _, d := range found {
		if d != nil {
			devs = append(devs, *d)
		}
	}

	slices.SortFunc(devs, func(a, b Device) int { return strings.Compare(a.Addr, b.Addr) })

	return devs, nil
}

// First returns the first supported Radeon under root.
func First(ctx context.Context, root string) (Device, error) {
	devs, err := Scan(ctx, root)
	if err != nil {
		return Device{}, err
	}

	if len(devs) == 0 {
		return Device{}, ErrNotFound
	}

	return devs[0], nil
}

// Open returns the device at the given sysfs directory. It fails with
// ErrNotFound if the function isn't a supported Radeon.
func Open(path string) (Device, error) {
	d, err := probe(path)
	if err != nil {
		return Device{}, err
	}

	if d == nil {
		return Device{}, fmt.Errorf("%w at %s", ErrNotFound, path)
	}

	return *d, nil
}

// probe returns nil, nil for functions that aren't supported Radeons.
func probe(dir string) (*Device, error) {
	vendor, err := readHex(dir, "vendor")
	if err != nil {
		return nil, err
	}

	if vendor != VendorATI {
		return nil, nil
	}

	class, err := readHex(dir, "class")
	if err != nil {
		return nil, err
	}

	if class>>16 != ClassDisplay {
		return nil, nil
	}

	id, err := readHex(dir, "device")
	if err != nil {
		return nil, err
	}

	c, ok := chips[uint16(id)]
	if !ok {
		return nil, nil
	}

	return &Device{
		Addr:     filepath.Base(dir),
		Path:     dir,
		DeviceID: uint16(id),
		Class:    uint32(class),
		Arch:     c.arch,
		Model:    c.model,
	}, nil
}

func readHex(dir, name string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, fmt.Errorf("pci: %w", err)
	}

	s := string(bytes.TrimSpace(b))
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("pci: %s/%s: %w", dir, name, err)
	}

	return v, nil
}

// ReadROM returns the device's expansion ROM. The kernel only exposes the
// image while the rom attribute is enabled, so it is switched on for the
// read and off again afterwards.
func (d *Device) ReadROM() (rom []byte, err error) {
	path := filepath.Join(d.Path, "rom")

	if err := os.WriteFile(path, []byte("1"), 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrROM, err)
	}

	defer func() {
		if e := os.WriteFile(path, []byte("0"), 0); e != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrROM, e)
		}
	}()

	rom, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrROM, err)
	}

	if len(rom) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrROM)
	}

	return rom, nil
}
