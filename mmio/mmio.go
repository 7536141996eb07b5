// Package mmio provides byte-addressed access to memory-mapped device windows.
package mmio

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Window is a memory-mapped register or RAM aperture. Offsets are relative to
// the start of the window and multi-byte values are little-endian. Accesses
// outside the window panic.
type Window interface {
	Size() int
	Read8(off int) uint8
	Write8(off int, v uint8)
	Read16(off int) uint16
	Write16(off int, v uint16)
	Read32(off int) uint32
	Write32(off int, v uint32)
}

var le = binary.LittleEndian

// Mem is a Window backed by a byte slice. Aligned 32-bit accesses are single
// loads and stores, which is what device registers require.
//
// This assumes a little endian host.
type Mem []byte

var _ Window = Mem(nil)

func (m Mem) Size() int { return len(m) }

func (m Mem) Read8(off int) uint8 { return m[off] }

func (m Mem) Write8(off int, v uint8) { m[off] = v }

func (m Mem) Read16(off int) uint16 { return le.Uint16(m[off : off+2]) }

func (m Mem) Write16(off int, v uint16) { le.PutUint16(m[off:off+2], v) }

func (m Mem) Read32(off int) uint32 {
	_ = m[off+3]
	if off&3 != 0 {
		return le.Uint32(m[off:])
	}

	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m[off])))
}

func (m Mem) Write32(off int, v uint32) {
	_ = m[off+3]
	if off&3 != 0 {
		le.PutUint32(m[off:], v)
		return
	}

	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m[off])), v)
}
