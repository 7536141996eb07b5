package radeon

import (
	"fmt"
	"strings"
)

// Arch identifies a Radeon chip family.
type Arch int

const (
	R100 Arch = iota + 1
	RV100
	R200
	RV200
	RV250
	R300
	M6
	M7
	M9
)

var archNames = [...]string{
	R100:  "R100",
	RV100: "RV100",
	R200:  "R200",
	RV200: "RV200",
	RV250: "RV250",
	R300:  "R300",
	M6:    "M6",
	M7:    "M7",
	M9:    "M9",
}

// ParseArch parses a family name such as "R200". Case is ignored.
func ParseArch(s string) (Arch, error) {
	for a, name := range archNames {
		if name != "" && strings.EqualFold(s, name) {
			return Arch(a), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownArch, s)
}

func (a Arch) String() string {
	if a > 0 && int(a) < len(archNames) {
		return archNames[a]
	}

	return fmt.Sprintf("Arch(%d)", int(a))
}

// HasCRTC2 reports whether the chip has a secondary CRTC and PLL. Only the
// original R100 lacks them.
func (a Arch) HasCRTC2() bool { return a != R100 }

// IsMobility reports whether the chip is a laptop part with an LVDS panel
// interface.
func (a Arch) IsMobility() bool { return a == M6 || a == M7 || a == M9 }

// DefaultPLL returns the PLL constants used when the ROM doesn't supply them.
func (a Arch) DefaultPLL() PLLInfo {
	pll := PLLInfo{
		RefClock: 2700,
		RefDiv:   12,
		MinFreq:  12500,
		MaxFreq:  35000,
	}

	switch a {
	case R100, RV100, M6:
		pll.XClk = 16600

	case RV200, M7:
		pll.XClk = 18300

	case R200:
		pll.XClk = 25000

	case RV250, M9:
		pll.MaxFreq = 40000
		pll.XClk = 20000

	case R300:
		pll.MinFreq = 20000
		pll.MaxFreq = 40000
		pll.XClk = 27000

	default:
		panic(a)
	}

	return pll
}

// MonitorType is what the primary head drives.
type MonitorType int

const (
	MonitorNone MonitorType = iota
	MonitorCRT
	MonitorLCD // LVDS panel
	MonitorDFP // TMDS digital flat panel
	MonitorCTV // composite TV
	MonitorSTV // S-video TV
)

func (m MonitorType) String() string {
	switch m {
	case MonitorNone:
		return "none"
	case MonitorCRT:
		return "CRT"
	case MonitorLCD:
		return "LCD"
	case MonitorDFP:
		return "DFP"
	case MonitorCTV:
		return "CTV"
	case MonitorSTV:
		return "STV"
	default:
		return fmt.Sprintf("MonitorType(%d)", int(m))
	}
}

// IsPanel reports whether the monitor is a flat panel driven through the
// panel scaler.
func (m MonitorType) IsPanel() bool { return m == MonitorLCD || m == MonitorDFP }
