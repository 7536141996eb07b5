package radeon

import (
	"errors"
	"image"

	"github.com/c35s/radeonfb/reg"
	"golang.org/x/image/draw"
)

const (
	CursorSize = 32

	cursorWords  = CursorSize * CursorSize
	cursorBytes  = cursorWords * 2
	cursorStride = CursorSize * 2
	cursorAlign  = 4096
)

// CursorImage is a cursor bitmap with its hotspot. Images of other sizes are
// scaled to 32x32. The driver caches conversions by pointer, so an image
// must not change once it has been set.
type CursorImage struct {
	Image   image.Image
	Hotspot image.Point
}

// Cursor is the hardware cursor of the primary CRTC. Its bitmap lives in a
// region of video memory reserved when the driver is created.
type Cursor struct {
	io      *VGAIO
	base    int
	cache   map[*CursorImage]*[cursorWords]uint16
	hotspot image.Point
}

func newCursor(io *VGAIO, base int) *Cursor {
	return &Cursor{
		io:    io,
		base:  base,
		cache: make(map[*CursorImage]*[cursorWords]uint16),
	}
}

// Base returns the offset of the cursor bitmap in video memory.
func (c *Cursor) Base() int { return c.base }

// SetImage converts the image to the native format and loads it.
func (c *Cursor) SetImage(ci *CursorImage) error {
	if ci == nil || ci.Image == nil {
		return errors.New("radeon: nil cursor image")
	}

	words, ok := c.cache[ci]
	if !ok {
		words = CursorWords(ci.Image)
		c.cache[ci] = words
	}

	ram := c.io.RAM()
	for i, w := range words {
		ram.Write16(c.base+2*i, w)
	}

	c.hotspot = ci.Hotspot
	return nil
}

// SetPosition moves the cursor hotspot to (x, y) on screen. When the
// bitmap's origin is off the top or left edge, the hidden part is skipped
// through the offset register and the base address.
func (c *Cursor) SetPosition(x, y int) {
	x -= c.hotspot.X
	y -= c.hotspot.Y

	var xo, yo int
	if x < 0 {
		xo = min(-x, CursorSize-1)
		x = 0
	}

	if y < 0 {
		yo = min(-y, CursorSize-1)
		y = 0
	}

	off := uint32(xo)<<16 | uint32(yo)
	pos := uint32(x)&0x3fff<<16 | uint32(y)&0x3fff

	c.io.SetReg32(reg.CurHorzVertOff, reg.CurLock|off)
	c.io.SetReg32(reg.CurHorzVertPos, reg.CurLock|pos)
	c.io.SetReg32(reg.CurOffset, uint32(c.base+yo*cursorStride))
	c.io.SetReg32(reg.CurHorzVertPos, pos)
}

// SetVisible turns the cursor on or off.
func (c *Cursor) SetVisible(on bool) {
	var v uint32
	if on {
		v = reg.CrtcCurEn
	}

	c.io.SetReg32Masked(reg.CrtcGenCntl, v, ^uint32(reg.CrtcCurEn))
}

// reset hides the cursor and drops the conversion cache.
func (c *Cursor) reset() {
	c.SetVisible(false)
	clear(c.cache)
	c.hotspot = image.Point{}
}

// CursorWords converts an image to 1024 native cursor words: one presence
// bit for any non-zero alpha and the top five bits of each of red, green and
// blue.
func CursorWords(src image.Image) *[cursorWords]uint16 {
	dst := image.NewNRGBA(image.Rect(0, 0, CursorSize, CursorSize))

	b := src.Bounds()
	if b.Dx() == CursorSize && b.Dy() == CursorSize {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	words := new([cursorWords]uint16)
	for y := 0; y < CursorSize; y++ {
		for x := 0; x < CursorSize; x++ {
			px := dst.NRGBAAt(x, y)

			w := uint16(px.R>>3)<<10 | uint16(px.G>>3)<<5 | uint16(px.B>>3)
			if px.A != 0 {
				w |= 0x8000
			}

			words[y*CursorSize+x] = w
		}
	}

	return words
}
