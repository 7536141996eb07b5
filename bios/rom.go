package bios

import (
	"bytes"
	"fmt"
)

// LegacyBase is the physical address of the ISA option ROM window that Scan
// expects its input to start at.
const LegacyBase = 0xc0000

const (
	scanEnd       = 0xf0000 // scanning stops below the system BIOS
	scanStep      = 0x1000
	sigWindow     = 128 // the ATI signature lives in the first 128 bytes
	romBlockBytes = 512 // byte 2 of the header counts 512-byte blocks
)

var atiSignature = []byte("761295520")

// Verify checks the 0x55aa expansion ROM signature.
func Verify(rom []byte) error {
	if len(rom) < 3 {
		return fmt.Errorf("%w: %d bytes", ErrTruncated, len(rom))
	}

	if rom[0] != 0x55 || rom[1] != 0xaa {
		return fmt.Errorf("%w: %#02x%02x != 0x55aa", ErrSignature, rom[0], rom[1])
	}

	return nil
}

// Size returns the length of the ROM as declared in its header.
func Size(rom []byte) int {
	if len(rom) < 3 {
		return 0
	}

	return int(rom[2]) * romBlockBytes
}

// Scan looks for an ATI video BIOS in an image of legacy memory starting at
// LegacyBase. Candidates are 4K aligned, start with 0x55aa and carry the ATI
// signature in their first 128 bytes. The returned slice aliases legacy and
// is cut to the declared ROM size.
func Scan(legacy []byte) (rom []byte, addr int, err error) {
	for off := 0; LegacyBase+off < scanEnd && off+3 <= len(legacy); off += scanStep {
		b := legacy[off:]
		if b[0] != 0x55 || b[1] != 0xaa {
			continue
		}

		w := b
		if len(w) > sigWindow {
			w = w[:sigWindow]
		}

		if !bytes.Contains(w, atiSignature) {
			continue
		}

		n := Size(b)
		if n == 0 || n > len(b) {
			n = len(b)
		}

		return b[:n], LegacyBase + off, nil
	}

	return nil, 0, ErrNotFound
}
