// Package dump saves and loads Radeon register snapshots. A dump is a
// gzip-compressed cpio archive holding the register window, the PLL
// registers, the video BIOS and the chip identification. Dumps taken on real
// hardware can be replayed against the simulator.
package dump

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/c35s/radeonfb/mmio"
	"github.com/c35s/radeonfb/reg"
	"github.com/cavaliergopher/cpio"
)

var ErrFormat = errors.New("dump: bad format")

// archive members
const (
	fileArch  = "arch"
	fileModel = "model"
	fileRegs  = "mmio.bin"
	filePLL   = "pll.bin"
	fileROM   = "rom.bin"
)

// Dump is a snapshot of one device.
type Dump struct {
	Arch  string
	Model string

	// Regs is the register window, reg.WindowSize bytes.
	Regs []byte

	PLL [reg.NumPLL]uint32

	// ROM is the video BIOS image, if it could be read.
	ROM []byte
}

// PLLReader reads PLL registers.
type PLLReader interface {
	PLL(idx int) uint32
}

var le = binary.LittleEndian

// Capture reads the register window and the PLL registers of a device.
// Registers are read as aligned 32-bit words.
func Capture(regs mmio.Window, pll PLLReader, rom []byte, arch, model string) *Dump {
	d := &Dump{
		Arch:  arch,
		Model: model,
		Regs:  make([]byte, reg.WindowSize),
		ROM:   bytes.Clone(rom),
	}

	n := min(regs.Size(), reg.WindowSize)
	for off := 0; off+4 <= n; off += 4 {
		le.PutUint32(d.Regs[off:], regs.Read32(off))
	}

	for i := range d.PLL {
		d.PLL[i] = pll.PLL(i)
	}

	return d
}

// Write writes d to w.
func Write(w io.Writer, d *Dump) error {
	if len(d.Regs) != reg.WindowSize {
		return fmt.Errorf("%w: register window is %d bytes, want %d", ErrFormat, len(d.Regs), reg.WindowSize)
	}

	pll := make([]byte, 4*len(d.PLL))
	for i, v := range d.PLL {
		le.PutUint32(pll[4*i:], v)
	}

	files := []struct {
		name string
		data []byte
	}{
		{fileArch, []byte(d.Arch + "\n")},
		{fileModel, []byte(d.Model + "\n")},
		{fileRegs, d.Regs},
		{filePLL, pll},
		{fileROM, d.ROM},
	}

	zw := gzip.NewWriter(w)
	cw := cpio.NewWriter(zw)

	for _, f := range files {
		if f.data == nil {
			continue
		}

		err := cw.WriteHeader(&cpio.Header{
			Name: f.name,
			Mode: 0644,
			Size: int64(len(f.data)),
		})

		if err != nil {
			return err
		}

		if _, err := cw.Write(f.data); err != nil {
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return err
	}

	return zw.Close()
}

// Read reads a dump written by Write. Unknown archive members are skipped.
func Read(r io.Reader) (*Dump, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	defer zr.Close()

	d := new(Dump)
	seen := make(map[string]bool)
	cr := cpio.NewReader(zr)

	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}

		data, err := io.ReadAll(cr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFormat, hdr.Name, err)
		}

		seen[hdr.Name] = true

		switch hdr.Name {
		case fileArch:
			d.Arch = strings.TrimSpace(string(data))

		case fileModel:
			d.Model = strings.TrimSpace(string(data))

		case fileRegs:
			if len(data) != reg.WindowSize {
				return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrFormat, hdr.Name, len(data), reg.WindowSize)
			}

			d.Regs = data

		case filePLL:
			if len(data) != 4*reg.NumPLL {
				return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrFormat, hdr.Name, len(data), 4*reg.NumPLL)
			}

			for i := range d.PLL {
				d.PLL[i] = le.Uint32(data[4*i:])
			}

		case fileROM:
			d.ROM = data
		}
	}

	for _, name := range []string{fileArch, fileRegs, filePLL} {
		if !seen[name] {
			return nil, fmt.Errorf("%w: missing %s", ErrFormat, name)
		}
	}

	return d, nil
}
