package radeon

import (
	"github.com/c35s/radeonfb/mmio"
	"github.com/c35s/radeonfb/reg"
)

// VGAIO implements the register access protocols of a Radeon: plain MMIO,
// masked read-modify-write, the MM_INDEX/MM_DATA indirect window, the
// CLOCK_CNTL_INDEX/CLOCK_CNTL_DATA PLL window and the palette.
type VGAIO struct {
	regs mmio.Window
	ram  mmio.Window
}

// NewVGAIO wraps the register and video RAM windows of one device. The RAM
// window may be nil for register-only use.
func NewVGAIO(regs, ram mmio.Window) *VGAIO {
	return &VGAIO{regs: regs, ram: ram}
}

// Regs returns the register window.
func (v *VGAIO) Regs() mmio.Window { return v.regs }

// RAM returns the video RAM window.
func (v *VGAIO) RAM() mmio.Window { return v.ram }

func (v *VGAIO) Reg8(r int) uint8 { return v.regs.Read8(r) }

func (v *VGAIO) SetReg8(r int, val uint8) { v.regs.Write8(r, val) }

func (v *VGAIO) Reg32(r int) uint32 { return v.regs.Read32(r) }

func (v *VGAIO) SetReg32(r int, val uint32) { v.regs.Write32(r, val) }

// SetReg32Masked writes val to r, except for the bits set in keep, which
// keep their current hardware value.
func (v *VGAIO) SetReg32Masked(r int, val, keep uint32) {
	old := v.regs.Read32(r)
	v.regs.Write32(r, old&keep|val&^keep)
}

// Indexed8 selects idx through an 8-bit index register and reads the
// matching data register.
func (v *VGAIO) Indexed8(indexReg, dataReg int, idx uint8) uint8 {
	v.regs.Write8(indexReg, idx)
	return v.regs.Read8(dataReg)
}

// SetIndexed8 selects idx through an 8-bit index register and writes the
// matching data register.
func (v *VGAIO) SetIndexed8(indexReg, dataReg int, idx, val uint8) {
	v.regs.Write8(indexReg, idx)
	v.regs.Write8(dataReg, val)
}

// Indirect32 reads a register through MM_INDEX/MM_DATA. This reaches
// registers beyond the mapped window.
func (v *VGAIO) Indirect32(r int) uint32 {
	v.regs.Write32(reg.MMIndex, uint32(r))
	return v.regs.Read32(reg.MMData)
}

// SetIndirect32 writes a register through MM_INDEX/MM_DATA.
func (v *VGAIO) SetIndirect32(r int, val uint32) {
	v.regs.Write32(reg.MMIndex, uint32(r))
	v.regs.Write32(reg.MMData, val)
}

// PLL reads a PLL register. Only the low byte of CLOCK_CNTL_INDEX is
// written so the divider select bits above it are left alone.
func (v *VGAIO) PLL(idx int) uint32 {
	v.regs.Write8(reg.ClockCntlIndex, uint8(idx&reg.PllIndexMask))
	return v.regs.Read32(reg.ClockCntlData)
}

// SetPLL writes a PLL register. Write enable is only held for the data
// write.
func (v *VGAIO) SetPLL(idx int, val uint32) {
	v.regs.Write8(reg.ClockCntlIndex, uint8(idx&reg.PllIndexMask|reg.PllWrEn))
	v.regs.Write32(reg.ClockCntlData, val)
	v.regs.Write8(reg.ClockCntlIndex, uint8(idx&reg.PllIndexMask))
}

// SetPLLMasked writes val to a PLL register, except for the bits set in
// keep.
func (v *VGAIO) SetPLLMasked(idx int, val, keep uint32) {
	old := v.PLL(idx)
	v.SetPLL(idx, old&keep|val&^keep)
}

// SetPalette writes one 8-bit-per-channel palette entry.
func (v *VGAIO) SetPalette(i int, r, g, b uint8) {
	v.regs.Write8(reg.PaletteIndex, uint8(i))
	v.regs.Write32(reg.PaletteData, uint32(r)<<16|uint32(g)<<8|uint32(b))
}

// Palette reads one palette entry.
func (v *VGAIO) Palette(i int) (r, g, b uint8) {
	v.regs.Write8(reg.PaletteIndex, uint8(i))
	c := v.regs.Read32(reg.PaletteData)
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// DisableIRQ masks all interrupts and acknowledges any pending ones.
func (v *VGAIO) DisableIRQ() {
	v.regs.Write32(reg.GenIntCntl, 0)
	v.regs.Write32(reg.GenIntStatus, v.regs.Read32(reg.GenIntStatus))
}

// MemorySize returns the amount of video memory the chip reports.
func (v *VGAIO) MemorySize() int {
	return int(v.regs.Read32(reg.ConfigMemsize) & reg.ConfigMemsizeMask)
}
