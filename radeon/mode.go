package radeon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c35s/radeonfb/bios"
)

// DisplayMode is a CRT timing. Horizontal values are in pixels, vertical
// values in lines and PixelFreq in kHz.
type DisplayMode struct {
	Width      int
	Height     int
	HSyncStart int
	HSyncEnd   int
	HTotal     int
	VSyncStart int
	VSyncEnd   int
	VTotal     int
	PixelFreq  int

	NegHSync bool
	NegVSync bool
}

// Validate checks that the timing is ordered and non-empty.
func (m DisplayMode) Validate() error {
	switch {
	case m.Width <= 0 || m.Height <= 0:
		return fmt.Errorf("empty mode %dx%d", m.Width, m.Height)

	case m.HSyncStart < m.Width || m.HSyncEnd < m.HSyncStart || m.HTotal < m.HSyncEnd:
		return fmt.Errorf("bad horizontal timing %d %d %d %d", m.Width, m.HSyncStart, m.HSyncEnd, m.HTotal)

	case m.VSyncStart < m.Height || m.VSyncEnd < m.VSyncStart || m.VTotal < m.VSyncEnd:
		return fmt.Errorf("bad vertical timing %d %d %d %d", m.Height, m.VSyncStart, m.VSyncEnd, m.VTotal)

	case m.PixelFreq <= 0:
		return fmt.Errorf("bad pixel frequency %d kHz", m.PixelFreq)
	}

	return nil
}

// Refresh returns the vertical refresh rate in Hz.
func (m DisplayMode) Refresh() int {
	if m.HTotal == 0 || m.VTotal == 0 {
		return 0
	}

	return (m.PixelFreq*1000 + m.HTotal*m.VTotal/2) / (m.HTotal * m.VTotal)
}

func (m DisplayMode) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Width, m.Height, m.Refresh())
}

// Configuration is a mode and a pixel depth.
type Configuration struct {
	Mode         DisplayMode
	BitsPerPixel int
}

// BytesPerLine returns the scanline stride in video memory.
func (c Configuration) BytesPerLine() int {
	return RoundedVirtualWidth(c.Mode.Width, c.BitsPerPixel) * storageBits(c.BitsPerPixel) / 8
}

// BytesPerScreen returns the size of the visible framebuffer.
func (c Configuration) BytesPerScreen() int {
	return c.BytesPerLine() * c.Mode.Height
}

func (c Configuration) String() string {
	return fmt.Sprintf("%v %dbpp", c.Mode, c.BitsPerPixel)
}

// VESA DMT modes
var vesaModes = []struct {
	refresh int
	mode    DisplayMode
}{
	{60, DisplayMode{640, 480, 656, 752, 800, 490, 492, 525, 25175, true, true}},
	{75, DisplayMode{640, 480, 656, 720, 840, 481, 484, 500, 31500, true, true}},
	{60, DisplayMode{800, 600, 840, 968, 1056, 601, 605, 628, 40000, false, false}},
	{75, DisplayMode{800, 600, 816, 896, 1056, 601, 604, 625, 49500, false, false}},
	{60, DisplayMode{1024, 768, 1048, 1184, 1344, 771, 777, 806, 65000, true, true}},
	{70, DisplayMode{1024, 768, 1048, 1184, 1328, 771, 777, 806, 75000, true, true}},
	{75, DisplayMode{1024, 768, 1040, 1136, 1312, 769, 772, 800, 78750, false, false}},
	{75, DisplayMode{1152, 864, 1216, 1344, 1600, 865, 868, 900, 108000, false, false}},
	{60, DisplayMode{1280, 1024, 1328, 1440, 1688, 1025, 1028, 1066, 108000, false, false}},
	{75, DisplayMode{1280, 1024, 1296, 1440, 1688, 1025, 1028, 1066, 135000, false, false}},
	{60, DisplayMode{1600, 1200, 1664, 1856, 2160, 1201, 1204, 1250, 162000, false, false}},
}

// ParseMode looks up a VESA mode by name, e.g. "1024x768@60". The refresh
// rate defaults to 60 Hz.
func ParseMode(s string) (DisplayMode, error) {
	res, hz, ok := strings.Cut(s, "@")
	if !ok {
		hz = "60"
	}

	ws, hs, ok := strings.Cut(res, "x")
	if !ok {
		return DisplayMode{}, fmt.Errorf("bad mode %q: want WxH[@Hz]", s)
	}

	w, err := strconv.Atoi(ws)
	if err != nil {
		return DisplayMode{}, fmt.Errorf("bad mode %q: %w", s, err)
	}

	h, err := strconv.Atoi(hs)
	if err != nil {
		return DisplayMode{}, fmt.Errorf("bad mode %q: %w", s, err)
	}

	r, err := strconv.Atoi(hz)
	if err != nil {
		return DisplayMode{}, fmt.Errorf("bad mode %q: %w", s, err)
	}

	for _, vm := range vesaModes {
		if vm.mode.Width == w && vm.mode.Height == h && vm.refresh == r {
			return vm.mode, nil
		}
	}

	return DisplayMode{}, fmt.Errorf("%w: no VESA mode %dx%d@%d", ErrUnsupportedConfig, w, h, r)
}

func modeFromBIOS(m bios.Mode) DisplayMode {
	return DisplayMode{
		Width:      m.Width,
		Height:     m.Height,
		HSyncStart: m.HSyncStart,
		HSyncEnd:   m.HSyncEnd,
		HTotal:     m.HTotal,
		VSyncStart: m.VSyncStart,
		VSyncEnd:   m.VSyncEnd,
		VTotal:     m.VTotal,
		PixelFreq:  m.PixelFreq,
	}
}
