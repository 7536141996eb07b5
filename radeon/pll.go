package radeon

import (
	"fmt"

	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/reg"
)

// PLLInfo holds the pixel clock synthesizer constants. Frequencies are in
// units of 10 kHz.
type PLLInfo struct {
	RefClock int
	RefDiv   int
	MinFreq  int // lowest VCO frequency
	MaxFreq  int // highest VCO frequency
	XClk     int // memory clock
}

// PLLInfoFromBIOS converts the ROM's PLL table, falling back to def for
// fields the ROM leaves zero.
func PLLInfoFromBIOS(b *bios.PLLInfo, def PLLInfo) PLLInfo {
	if b == nil {
		return def
	}

	pll := def
	if b.RefClock > 0 {
		pll.RefClock = b.RefClock
	}

	if b.RefDiv > 0 {
		pll.RefDiv = b.RefDiv
	}

	if b.MinFreq > 0 {
		pll.MinFreq = b.MinFreq
	}

	if b.MaxFreq > 0 {
		pll.MaxFreq = b.MaxFreq
	}

	if b.XClk > 0 {
		pll.XClk = b.XClk
	}

	return pll
}

// PostDividers lists the post divider ratios in the order they are tried.
// A ratio's index is its encoding in the PPLL_DIV_n post divider field.
var PostDividers = [...]int{1, 2, 4, 8, 3, 16, 6, 12}

// Dividers is a PLL divider solution.
type Dividers struct {
	RefDiv    int
	Feedback  int
	PostIndex int // index into PostDividers
}

// Post returns the post divider ratio.
func (d Dividers) Post() int { return PostDividers[d.PostIndex] }

// PLLDiv encodes the feedback and post dividers in the PPLL_DIV_n layout.
func (d Dividers) PLLDiv() uint32 {
	return uint32(d.Feedback)&reg.PpllFbDivMask | uint32(d.PostIndex)<<reg.PpllPostDivShift
}

// Freq returns the pixel frequency the dividers produce, in 10 kHz.
func (d Dividers) Freq(pll PLLInfo) int {
	if d.RefDiv == 0 {
		return 0
	}

	return pll.RefClock * d.Feedback / (d.RefDiv * d.Post())
}

// ComputeDividers finds dividers for a pixel frequency in units of 10 kHz.
// Frequencies above the VCO range are clamped to it, and frequencies too low
// for the largest post divider are raised to the lowest one it can reach.
// The first post divider whose VCO frequency fits the range wins.
func ComputeDividers(freq int, pll PLLInfo) (Dividers, error) {
	if pll.RefClock <= 0 || pll.RefDiv <= 0 || pll.MinFreq > pll.MaxFreq {
		return Dividers{}, fmt.Errorf("%w: bad PLL constants %+v", ErrPLLOutOfRange, pll)
	}

	if freq > pll.MaxFreq {
		freq = pll.MaxFreq
	}

	if freq*12 < pll.MinFreq {
		freq = (pll.MinFreq + 11) / 12
	}

	for i, d := range PostDividers {
		vco := d * freq
		if vco < pll.MinFreq || vco > pll.MaxFreq {
			continue
		}

		return Dividers{
			RefDiv:    pll.RefDiv,
			Feedback:  pll.RefDiv * vco / pll.RefClock,
			PostIndex: i,
		}, nil
	}

	return Dividers{}, fmt.Errorf("%w: %d0 kHz not in [%d0, %d0] kHz", ErrPLLOutOfRange,
		freq, pll.MinFreq, pll.MaxFreq)
}

// panelDividers returns the dividers the ROM recommends for the panel's
// native mode.
func panelDividers(p *bios.PanelInfo) (Dividers, bool) {
	if !p.HasDividers() {
		return Dividers{}, false
	}

	return Dividers{
		RefDiv:    p.RefDiv,
		Feedback:  p.FbkDiv,
		PostIndex: p.PostDiv,
	}, true
}
