// Package bios reads the PLL and flat panel tables out of a Radeon video BIOS
// image.
package bios

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTruncated = errors.New("bios: image is truncated")
	ErrSignature = errors.New("bios: bad ROM signature")
	ErrNotFound  = errors.New("bios: no ATI ROM found")
)

// Info is everything the driver uses from the ROM. Tables the ROM doesn't
// carry are nil.
type Info struct {
	PLL   *PLLInfo
	Panel *PanelInfo
}

// PLLInfo holds the pixel clock synthesizer constants. Frequencies are in
// units of 10 kHz.
type PLLInfo struct {
	XClk     int
	RefClock int
	RefDiv   int
	MinFreq  int
	MaxFreq  int
}

// PanelInfo describes an attached flat panel.
type PanelInfo struct {
	Name string
	XRes int
	YRes int

	// Dividers the BIOS recommends for the native mode. PostDiv is the
	// encoded post divider field, not the divide ratio.
	RefDiv  int
	PostDiv int
	FbkDiv  int

	// Timing is the block matching the native resolution, or nil if the ROM
	// doesn't have one.
	Timing *PanelTiming
}

// HasManualTiming reports whether the ROM supplied timing for the panel's
// native resolution.
func (p *PanelInfo) HasManualTiming() bool {
	return p != nil && p.Timing != nil
}

// HasDividers reports whether the ROM recommends PLL dividers for the panel.
func (p *PanelInfo) HasDividers() bool {
	return p != nil && p.RefDiv > 0 && p.FbkDiv > 0 && p.PostDiv >= 0 && p.PostDiv < 8
}

// PanelTiming is one flat panel timing block. Horizontal fields are in
// character clocks (8 pixels), vertical fields in lines.
type PanelTiming struct {
	XRes       int
	YRes       int
	DotClock   int // 10 kHz
	HTotal     int
	HDisplay   int
	HSyncStart int
	HSyncWidth int
	VTotal     int
	VDisplay   int
	VSync      int
}

// Mode is a display mode expressed in pixels, lines and kHz.
type Mode struct {
	Width      int
	Height     int
	HSyncStart int
	HSyncEnd   int
	HTotal     int
	VSyncStart int
	VSyncEnd   int
	VTotal     int
	PixelFreq  int
}

// HBlank is the horizontal blanking interval in pixels.
func (t *PanelTiming) HBlank() int { return (t.HTotal - t.HDisplay) * 8 }

// HOverPlus is the horizontal front porch in pixels.
func (t *PanelTiming) HOverPlus() int { return (t.HSyncStart - t.HDisplay - 1) * 8 }

// HSyncPixels is the horizontal sync width in pixels.
func (t *PanelTiming) HSyncPixels() int { return t.HSyncWidth * 8 }

// VBlank is the vertical blanking interval in lines.
func (t *PanelTiming) VBlank() int { return t.VTotal - t.VDisplay }

// VOverPlus is the vertical front porch in lines.
func (t *PanelTiming) VOverPlus() int { return t.VSync - t.VDisplay }

// VSyncWidth is the vertical sync width in lines. The block stores vsync as
// a single byte with no room for a width, so it is always 0 and the CRTC
// falls back to its one-line minimum.
func (t *PanelTiming) VSyncWidth() int { return 0 }

// Mode converts the block to a display mode at the panel resolution. The
// result isn't validated; ROMs in the wild carry nonsense.
func (t *PanelTiming) Mode() Mode {
	m := Mode{
		Width:     t.XRes,
		Height:    t.YRes,
		HTotal:    t.XRes + t.HBlank(),
		VTotal:    t.YRes + t.VBlank(),
		PixelFreq: t.DotClock * 10,
	}

	m.HSyncStart = t.XRes + t.HOverPlus()
	m.HSyncEnd = m.HSyncStart + t.HSyncPixels()
	m.VSyncStart = t.YRes + t.VOverPlus()
	m.VSyncEnd = m.VSyncStart + t.VSyncWidth()

	return m
}

// rom offsets

const (
	romHeaderPtr = 0x48 // int16 pointer to the BIOS header

	hdrPLLInfoPtr   = 0x30 // int16 pointer to the PLL table
	hdrPanelInfoPtr = 0x40 // int16 pointer to the flat panel table

	pllXClk     = 0x08 // int16
	pllRefClock = 0x0e // int16
	pllRefDiv   = 0x10 // int16
	pllMinFreq  = 0x12 // int32
	pllMaxFreq  = 0x16 // int32

	panelName      = 1  // 24 bytes
	panelXRes      = 25 // int16
	panelYRes      = 27 // int16
	panelRefDiv    = 46 // int16
	panelPostDiv   = 48 // byte
	panelFbkDiv    = 49 // int16
	panelTimingPtr = 64 // up to maxTimingBlocks int16 pointers
	panelNameLen   = 24

	maxTimingBlocks = 20

	tmgXRes       = 0  // int16
	tmgYRes       = 2  // int16
	tmgDotClock   = 9  // byte
	tmgHTotal     = 17 // int16
	tmgHDisplay   = 19 // int16
	tmgHSyncStart = 21 // byte
	tmgHSyncWidth = 23 // byte
	tmgVTotal     = 24 // byte
	tmgVDisplay   = 26 // byte
	tmgVSync      = 28 // byte
)

var le = binary.LittleEndian

// romReader wraps a ROM with bounds-checked little-endian reads. The first read
// past the end is remembered and every later read returns 0.
type romReader struct {
	b   []byte
	err error
}

func (r *romReader) check(off, n int, what string) bool {
	if r.err != nil {
		return false
	}

	if off < 0 || off+n > len(r.b) {
		r.err = fmt.Errorf("%w: %s at %#x+%d past %#x", ErrTruncated, what, off, n, len(r.b))
		return false
	}

	return true
}

func (r *romReader) u8(off int, what string) int {
	if !r.check(off, 1, what) {
		return 0
	}

	return int(r.b[off])
}

func (r *romReader) u16(off int, what string) int {
	if !r.check(off, 2, what) {
		return 0
	}

	return int(le.Uint16(r.b[off:]))
}

func (r *romReader) u32(off int, what string) int {
	if !r.check(off, 4, what) {
		return 0
	}

	return int(le.Uint32(r.b[off:]))
}

// Parse reads the PLL and flat panel tables out of rom. A ROM without a
// header pointer, or a header without one of the tables, isn't an error; the
// corresponding Info field is nil. Pointers that lead past the end of the
// image are.
func Parse(rom []byte) (*Info, error) {
	r := &romReader{b: rom}
	info := new(Info)

	hdr := r.u16(romHeaderPtr, "header pointer")
	if r.err != nil || hdr == 0 {
		return info, r.err
	}

	if p := r.u16(hdr+hdrPLLInfoPtr, "PLL table pointer"); p != 0 {
		info.PLL = &PLLInfo{
			XClk:     r.u16(p+pllXClk, "PLL xclk"),
			RefClock: r.u16(p+pllRefClock, "PLL reference clock"),
			RefDiv:   r.u16(p+pllRefDiv, "PLL reference divider"),
			MinFreq:  r.u32(p+pllMinFreq, "PLL min frequency"),
			MaxFreq:  r.u32(p+pllMaxFreq, "PLL max frequency"),
		}
	}

	if p := r.u16(hdr+hdrPanelInfoPtr, "panel table pointer"); p != 0 {
		info.Panel = parsePanel(r, p)
	}

	if r.err != nil {
		return nil, r.err
	}

	return info, nil
}

func parsePanel(r *romReader, p int) *PanelInfo {
	pi := &PanelInfo{
		XRes:    r.u16(p+panelXRes, "panel xres"),
		YRes:    r.u16(p+panelYRes, "panel yres"),
		RefDiv:  r.u16(p+panelRefDiv, "panel reference divider"),
		PostDiv: r.u8(p+panelPostDiv, "panel post divider"),
		FbkDiv:  r.u16(p+panelFbkDiv, "panel feedback divider"),
	}

	if r.check(p+panelName, panelNameLen, "panel name") {
		name := r.b[p+panelName : p+panelName+panelNameLen]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}

		pi.Name = strings.TrimSpace(string(name))
	}

	for i := 0; i < maxTimingBlocks; i++ {
		off := r.u16(p+panelTimingPtr+2*i, "timing block pointer")
		if off == 0 {
			break
		}

		if r.u16(off+tmgXRes, "timing xres") != pi.XRes || r.u16(off+tmgYRes, "timing yres") != pi.YRes {
			continue
		}

		pi.Timing = &PanelTiming{
			XRes:       pi.XRes,
			YRes:       pi.YRes,
			DotClock:   r.u8(off+tmgDotClock, "timing dot clock"),
			HTotal:     r.u16(off+tmgHTotal, "timing htotal"),
			HDisplay:   r.u16(off+tmgHDisplay, "timing hdisplay"),
			HSyncStart: r.u8(off+tmgHSyncStart, "timing hsync start"),
			HSyncWidth: r.u8(off+tmgHSyncWidth, "timing hsync width"),
			VTotal:     r.u8(off+tmgVTotal, "timing vtotal"),
			VDisplay:   r.u8(off+tmgVDisplay, "timing vdisplay"),
			VSync:      r.u8(off+tmgVSync, "timing vsync"),
		}

		break
	}

	return pi
}
