package radeon

import (
	"fmt"

	"github.com/c35s/radeonfb/reg"
)

// pixel format codes, shared by CRTC_GEN_CNTL and the 2D engine datatype
var pixelFormats = map[int]uint32{
	4:  1,
	8:  2,
	15: 3,
	16: 4,
	24: 5,
	32: 6,
}

// PixelFormat returns the hardware pixel format code for a depth.
func PixelFormat(bpp int) (uint32, error) {
	f, ok := pixelFormats[bpp]
	if !ok {
		return 0, fmt.Errorf("%w: %d bpp", ErrUnsupportedPixelFormat, bpp)
	}

	return f, nil
}

// storageBits returns the bits a pixel occupies in memory.
func storageBits(bpp int) int {
	if bpp == 15 {
		return 16
	}

	return bpp
}

// BytesPerPixel returns the bytes a pixel occupies in memory. Depths below
// 8 bits return 0.
func BytesPerPixel(bpp int) int { return storageBits(bpp) / 8 }

// RoundedVirtualWidth rounds a width in pixels up so that a scanline is a
// multiple of 64 bytes. 24 bpp lines are rounded to a multiple of 64 pixels
// instead.
func RoundedVirtualWidth(width, bpp int) int {
	sb := storageBits(bpp)
	if sb <= 0 {
		return width
	}

	align := 512 / sb
	if sb == 24 || align == 0 {
		align = 64
	}

	return (width + align - 1) / align * align
}

// CrtcTiming is the CRTC register encoding of a mode.
type CrtcTiming struct {
	HTotalChars        int
	HDisplayChars      int
	HSyncWidthChars    int
	HSyncStartAdjusted int // less 8 pixels of character clock latency
	VSyncWidth         int
	VirtualWidth       int

	Format       uint32
	HTotalDisp   uint32
	HSyncStrtWid uint32
	VTotalDisp   uint32
	VSyncStrtWid uint32
	Pitch        uint32 // pitch in units of 8 pixels, in both halves
}

// ComputeCrtcTiming encodes a mode at a pixel depth for the CRTC.
func ComputeCrtcTiming(m DisplayMode, bpp int) (CrtcTiming, error) {
	format, err := PixelFormat(bpp)
	if err != nil {
		return CrtcTiming{}, err
	}

	if err := m.Validate(); err != nil {
		return CrtcTiming{}, fmt.Errorf("%w: %w", ErrUnsupportedConfig, err)
	}

	t := CrtcTiming{
		HTotalChars:        m.HTotal/8 - 1,
		HDisplayChars:      m.Width/8 - 1,
		HSyncWidthChars:    clamp((m.HSyncEnd-m.HSyncStart)/8, 1, 63),
		HSyncStartAdjusted: m.HSyncStart - 8,
		VSyncWidth:         clamp(m.VSyncEnd-m.VSyncStart, 1, 31),
		VirtualWidth:       RoundedVirtualWidth(m.Width, bpp),
		Format:             format,
	}

	t.HTotalDisp = uint32(t.HTotalChars)&0x3ff | uint32(t.HDisplayChars)&0x1ff<<16

	t.HSyncStrtWid = uint32(t.HSyncStartAdjusted)&0x1fff | uint32(t.HSyncWidthChars)<<16
	if m.NegHSync {
		t.HSyncStrtWid |= reg.CrtcHSyncPol
	}

	t.VTotalDisp = uint32(m.VTotal-1)&0xffff | uint32(m.Height-1)&0xfff<<16

	t.VSyncStrtWid = uint32(m.VSyncStart-1)&0xfff | uint32(t.VSyncWidth)<<16
	if m.NegVSync {
		t.VSyncStrtWid |= reg.CrtcVSyncPol
	}

	p := uint32(t.VirtualWidth / 8)
	t.Pitch = p | p<<16

	return t, nil
}

// ComputePanelStretch encodes the flat panel scaler for a mode of w x h on
// a panel of panelX x panelY. Modes smaller than the panel are stretched
// with blending; a dimension that matches the panel is passed through. The
// auto-ratio bits of the old register values are preserved.
func ComputePanelStretch(w, h, panelX, panelY int, oldHorz, oldVert uint32) (horz, vert uint32) {
	horz = oldHorz & (reg.HorzAutoRatio | reg.HorzFpLoopStretch | reg.HorzAutoRatioInc)
	vert = oldVert & (reg.VertStretchReserved | reg.VertAutoRatioEn)

	if w < panelX {
		horz |= uint32(stretchRatio(w, panelX))&reg.HorzStretchRatioMask |
			reg.HorzStretchEnable | reg.HorzStretchBlend
	} else {
		horz |= reg.HorzStretchRatioMax & reg.HorzStretchRatioMask
	}

	if h < panelY {
		vert |= uint32(stretchRatio(h, panelY))&reg.VertStretchRatioMask |
			reg.VertStretchEnable | reg.VertStretchBlend
	} else {
		vert |= reg.VertStretchRatioMax & reg.VertStretchRatioMask
	}

	horz |= uint32(panelX/8-1) << reg.HorzPanelShift & reg.HorzPanelSizeMask
	vert |= uint32(panelY-1) << reg.VertPanelShift & reg.VertPanelSizeMask

	return horz, vert
}

func stretchRatio(res, panel int) int {
	return (res*reg.HorzStretchRatioMax + panel/2) / panel
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
