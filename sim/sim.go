// Package sim emulates the parts of a Radeon that mode setting talks to:
// the register window, the PLL index/data pair and its atomic update
// handshake, the palette, the command FIFO and screen to screen blits.
// A Device is an mmio.Window, so the driver runs against it unchanged.
package sim

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c35s/radeonfb/dump"
	"github.com/c35s/radeonfb/mmio"
	"github.com/c35s/radeonfb/reg"
	"golang.org/x/sys/unix"
)

// Options configure a Device.
type Options struct {

	// MemSize is the amount of video memory, a multiple of 16 MiB. The
	// default is 16 MiB.
	MemSize int

	// AckReads is how many reads of a PLL reference divider register show
	// an atomic update as pending. The default is 2.
	AckReads int

	// NeverAckPLL keeps atomic PLL updates pending forever.
	NeverAckPLL bool

	// DropPLLWrites discards writes to PLL registers.
	DropPLLWrites bool

	// FIFOStalled makes the command FIFO report no free entries.
	FIFOStalled bool

	// Regs and PLL override the power-on register values.
	Regs map[int]uint32
	PLL  map[int]uint32
}

// Write is one register write seen by the device.
type Write struct {
	Reg   int
	Value uint32 // the register value after the write
	PLL   bool   // Reg is a PLL index
}

// Snapshot is the architectural state of a device.
type Snapshot struct {
	Regs    [reg.WindowSize / 4]uint32
	PLL     [reg.NumPLL]uint32
	Palette [256]uint32
}

// Device is a simulated Radeon.
type Device struct {
	opts Options
	ram  mmio.Mem

	mu      sync.Mutex
	regs    [reg.WindowSize / 4]uint32
	pll     [reg.NumPLL]uint32
	pending [2]int // reads left before the atomic update of PLL 0 or 1 is acked; -1 never
	palette [256]uint32
	palIdx  uint8
	trace   []Write
	errs    []error
	blits   int
}

var _ mmio.Window = (*Device)(nil)

var le = binary.LittleEndian

// fifoEntries is the size of the command FIFO.
const fifoEntries = 64

// New creates a device with a console-like power-on state: CRTC 1 scanning
// out at offset 0 with the pixel clock from the PLL and the display on.
func New(opts Options) *Device {
	opts = opts.withDefaults()

	d := &Device{
		opts: opts,
		ram:  make(mmio.Mem, opts.MemSize),
	}

	d.setReg(reg.ConfigMemsize, uint32(opts.MemSize)&reg.ConfigMemsizeMask)
	d.setReg(reg.CrtcGenCntl, reg.CrtcEn|2<<reg.CrtcPixWidthShift)
	d.setReg(reg.CrtcExtCntl, reg.CrtcCrtOn|reg.VgaAtiLinear)
	d.setReg(reg.DacCntl, reg.Dac8BitEn|reg.DacMaskAll|2)
	d.setReg(reg.CrtcHTotalDisp, 0x4f0063)
	d.setReg(reg.CrtcVTotalDisp, 0x1df020c)
	d.setReg(reg.CrtcPitch, 0x500050)
	d.setReg(reg.Crtc2GenCntl, reg.Crtc2DispDis)

	d.pll[reg.PpllRefDiv] = 12
	d.pll[reg.PpllDiv0] = 0x30000 | 0x77
	d.pll[reg.PpllDiv1] = 0x20000 | 0x6c
	d.pll[reg.PpllDiv2] = 0x20000 | 0x78
	d.pll[reg.PpllDiv3] = 0x20000 | 0x6c
	d.pll[reg.VclkEcpCntl] = reg.VclkSrcPpllClk | reg.PixclkAlwaysOnb | reg.PixclkDacAlwaysOnb
	d.pll[reg.P2pllRefDiv] = 12
	d.pll[reg.P2pllDiv0] = 0x20000 | 0x6c
	d.pll[reg.PixclksCntl] = reg.Pix2clkSrcP2pllClk

	for r, v := range opts.Regs {
		d.setReg(r, v)
	}

	for i, v := range opts.PLL {
		d.pll[i] = v
	}

	return d
}

// FromDump creates a device whose registers come from a dump.
func FromDump(dd *dump.Dump, opts Options) (*Device, error) {
	if len(dd.Regs) != reg.WindowSize {
		return nil, fmt.Errorf("%w: register window is %d bytes", dump.ErrFormat, len(dd.Regs))
	}

	d := New(opts)
	for i := range d.regs {
		d.regs[i] = le.Uint32(dd.Regs[4*i:])
	}

	for i, v := range dd.PLL {
		d.pll[i] = v &^ atomicBit(i)
	}

	if opts.MemSize == 0 {
		if n := int(d.regs[reg.ConfigMemsize/4] & reg.ConfigMemsizeMask); n > 0 {
			d.ram = make(mmio.Mem, n)
		}
	}

	return d, nil
}

func (opts Options) withDefaults() Options {
	if opts.MemSize == 0 {
		opts.MemSize = 16 << 20
	}

	if opts.AckReads == 0 {
		opts.AckReads = 2
	}

	return opts
}

// RAM returns the video memory window.
func (d *Device) RAM() mmio.Mem { return d.ram }

// Size returns the size of the register window.
func (d *Device) Size() int { return reg.WindowSize }

func (d *Device) Read8(off int) uint8 {
	var b [1]byte
	d.access(off, b[:], false)
	return b[0]
}

func (d *Device) Read16(off int) uint16 {
	var b [2]byte
	d.access(off, b[:], false)
	return le.Uint16(b[:])
}

func (d *Device) Read32(off int) uint32 {
	var b [4]byte
	d.access(off, b[:], false)
	return le.Uint32(b[:])
}

func (d *Device) Write8(off int, v uint8) {
	d.access(off, []byte{v}, true)
}

func (d *Device) Write16(off int, v uint16) {
	var b [2]byte
	le.PutUint16(b[:], v)
	d.access(off, b[:], true)
}

func (d *Device) Write32(off int, v uint32) {
	var b [4]byte
	le.PutUint32(b[:], v)
	d.access(off, b[:], true)
}

// access is HandleMMIO for the Window methods. Accesses outside the window
// panic like they would on a mapped slice.
func (d *Device) access(off int, data []byte, isWrite bool) {
	if err := d.HandleMMIO(off, data, isWrite); err == unix.EINVAL {
		panic(fmt.Sprintf("sim: bad %d-byte access at %#x", len(data), off))
	}
}

// HandleMMIO performs one register access. Accesses narrower than 32 bits
// touch only their bytes of the containing register. A write the hardware
// would ignore is recorded (see Err) and returns unix.EPERM.
func (d *Device) HandleMMIO(off int, data []byte, isWrite bool) (err error) {
	n := len(data)
	if off < 0 || n == 0 || n > 4 || off&3+n > 4 || off+n > reg.WindowSize {
		return unix.EINVAL
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	base := off &^ 3
	shift := uint(off&3) * 8
	mask := (uint32(1)<<(8*n) - 1) << shift

	if !isWrite {
		v := d.readMMIO(base) >> shift
		for i := range data {
			data[i] = byte(v >> (8 * i))
		}

		return nil
	}

	var v uint32
	for i, b := range data {
		v |= uint32(b) << (8 * i)
	}

	defer func() {
		if err != nil {
			slog.Debug("sim: write ignored", "reg", fmt.Sprintf("%#x", base), "err", err)
			d.errs = append(d.errs, fmt.Errorf("register %#x: %w", base, err))
		}
	}()

	return d.writeMMIO(base, v<<shift, mask)
}

func (d *Device) reg(off int) uint32 { return d.regs[off/4] }

func (d *Device) setReg(off int, v uint32) { d.regs[off/4] = v }

func (d *Device) readMMIO(off int) uint32 {
	switch off {
	case reg.ClockCntlData:
		return d.readPLL(int(d.reg(reg.ClockCntlIndex) & reg.PllIndexMask))

	case reg.PaletteData:
		return d.palette[d.palIdx]

	case reg.RbbmStatus:
		if d.opts.FIFOStalled {
			return 0
		}

		return fifoEntries

	case reg.MMData:
		if idx := int(d.reg(reg.MMIndex)); idx >= 0 && idx < reg.WindowSize && idx&3 == 0 && idx != reg.MMData {
			return d.readMMIO(idx)
		}

		return 0
	}

	return d.reg(off)
}

func (d *Device) writeMMIO(off int, v, mask uint32) error {
	nv := d.reg(off)&^mask | v&mask

	switch off {
	case reg.ConfigMemsize, reg.CrtcStatus, reg.RbbmStatus:
		return unix.EPERM

	case reg.ClockCntlData:
		idx := d.reg(reg.ClockCntlIndex)
		if idx&reg.PllWrEn == 0 {
			return unix.EPERM
		}

		return d.writePLL(int(idx&reg.PllIndexMask), v, mask)

	case reg.GenIntStatus:
		nv = d.reg(off) &^ (v & mask)

	case reg.PaletteIndex:
		d.palIdx = uint8(nv)

	case reg.PaletteData:
		d.palette[d.palIdx] = nv & 0xffffff
		d.palIdx++

	case reg.MMData:
		if idx := int(d.reg(reg.MMIndex)); idx >= 0 && idx < reg.WindowSize && idx&3 == 0 && idx != reg.MMData {
			return d.writeMMIO(idx, v, mask)
		}

		return unix.EPERM
	}

	d.setReg(off, nv)
	d.trace = append(d.trace, Write{Reg: off, Value: nv})

	if off == reg.DstHeightWidth {
		return d.blit()
	}

	return nil
}

// atomicBit returns the update pending bit of a PLL register, or 0.
func atomicBit(idx int) uint32 {
	if idx == reg.PpllRefDiv || idx == reg.P2pllRefDiv {
		return reg.PpllAtomicUpdateR
	}

	return 0
}

func pllHead(idx int) int {
	if idx == reg.P2pllRefDiv {
		return 1
	}

	return 0
}

func (d *Device) readPLL(idx int) uint32 {
	v := d.pll[idx]
	if bit := atomicBit(idx); bit != 0 {
		h := pllHead(idx)
		if d.pending[h] != 0 {
			v |= bit
		}

		if d.pending[h] > 0 {
			d.pending[h]--
		}
	}

	return v
}

func (d *Device) writePLL(idx int, v, mask uint32) error {
	if d.opts.DropPLLWrites {
		return nil
	}

	nv := d.pll[idx]&^mask | v&mask

	if bit := atomicBit(idx); bit != 0 {
		if nv&bit != 0 {
			h := pllHead(idx)
			d.pending[h] = d.opts.AckReads
			if d.opts.NeverAckPLL {
				d.pending[h] = -1
			}
		}

		nv &^= bit
	}

	d.pll[idx] = nv
	d.trace = append(d.trace, Write{Reg: idx, Value: nv, PLL: true})

	return nil
}

// datatypeBytes maps the 2D engine datatype to bytes per pixel.
var datatypeBytes = map[uint32]int{2: 1, 3: 2, 4: 2, 5: 3, 6: 4}

// blit runs the copy described by the 2D registers.
func (d *Device) blit() error {
	gmc := d.reg(reg.DpGuiMasterCntl)

	bpp, ok := datatypeBytes[gmc&reg.GmcDstDatatypeMask>>reg.GmcDstDatatypeShift]
	if !ok {
		return unix.EINVAL
	}

	pitchOffset := func(r int, bit uint32) (pitch, base int) {
		po := d.reg(reg.DefaultPitchOffset)
		if gmc&bit != 0 {
			po = d.reg(r)
		}

		return int(po>>reg.PitchOffsetPitchShift) * 64,
			int(po&reg.PitchOffsetOffsetMask) << reg.PitchOffsetOffsetShift
	}

	srcPitch, srcBase := pitchOffset(reg.SrcPitchOffset, reg.GmcSrcPitchOffsetCntl)
	dstPitch, dstBase := pitchOffset(reg.DstPitchOffset, reg.GmcDstPitchOffsetCntl)

	split := func(v uint32) (int, int) { return int(v >> 16), int(v & 0xffff) }
	sy, sx := split(d.reg(reg.SrcYX))
	dy, dx := split(d.reg(reg.DstYX))
	h, w := split(d.reg(reg.DstHeightWidth))

	dir := d.reg(reg.DpCntl)
	xs, ys := -1, -1
	if dir&reg.DstXLeftToRight != 0 {
		xs = 1
	}

	if dir&reg.DstYTopToBottom != 0 {
		ys = 1
	}

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			src := srcBase + (sy+ys*j)*srcPitch + (sx+xs*i)*bpp
			dst := dstBase + (dy+ys*j)*dstPitch + (dx+xs*i)*bpp
			if src < 0 || dst < 0 || src+bpp > len(d.ram) || dst+bpp > len(d.ram) {
				return unix.EFAULT
			}

			copy(d.ram[dst:dst+bpp], d.ram[src:src+bpp])
		}
	}

	d.blits++
	return nil
}

// Err returns the ignored writes seen so far, or nil.
func (d *Device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.errs) == 0 {
		return nil
	}

	return fmt.Errorf("sim: %d ignored writes, first: %w", len(d.errs), d.errs[0])
}

// Trace returns the register writes seen so far.
func (d *Device) Trace() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Write(nil), d.trace...)
}

// ResetTrace forgets the recorded writes.
func (d *Device) ResetTrace() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.trace = nil
}

// Blits returns the number of blits run.
func (d *Device) Blits() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.blits
}

// PLL returns a PLL register without side effects.
func (d *Device) PLL(idx int) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pll[idx]
}

// Reg returns a register without side effects.
func (d *Device) Reg(off int) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.reg(off &^ 3)
}

// Palette returns a palette entry as 0xRRGGBB.
func (d *Device) Palette(i uint8) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.palette[i]
}

// Snapshot returns the architectural state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Snapshot{Regs: d.regs, PLL: d.pll, Palette: d.palette}
}

// Dump captures the device state.
func (d *Device) Dump(rom []byte, arch, model string) *dump.Dump {
	d.mu.Lock()
	defer d.mu.Unlock()

	dd := &dump.Dump{
		Arch:  arch,
		Model: model,
		Regs:  make([]byte, reg.WindowSize),
		PLL:   d.pll,
		ROM:   rom,
	}

	for i, v := range d.regs {
		le.PutUint32(dd.Regs[4*i:], v)
	}

	return dd
}
