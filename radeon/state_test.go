package radeon_test

import (
	"strings"
	"testing"

	"github.com/c35s/radeonfb/radeon"
	"github.com/c35s/radeonfb/reg"
	"github.com/c35s/radeonfb/sim"
	"github.com/google/go-cmp/cmp"
)

func TestStateRoundTrip(t *testing.T) {
	for _, arch := range []radeon.Arch{radeon.R100, radeon.RV250, radeon.M7} {
		t.Run(arch.String(), func(t *testing.T) {
			dev := sim.New(sim.Options{
				Regs: map[int]uint32{
					reg.OvrClr:              0x123456,
					reg.FpHorzStretch:       0x7f1000,
					reg.LvdsPllCntl:         0x10,
					reg.Crtc2HTotalDisp:     0x4f0063,
					reg.SurfaceCntl:         0x100,
					reg.TmdsTransmitterCntl: 1,
				},
			})

			io := radeon.NewVGAIO(dev, dev.RAM())
			saved := saveState(dev, arch)

			// scribble over everything the snapshot covers
			for _, r := range []int{
				reg.OvrClr, reg.SurfaceCntl, reg.CrtcGenCntl, reg.CrtcHTotalDisp, reg.CrtcVTotalDisp,
				reg.CrtcPitch, reg.CrtcOffset, reg.Crtc2HTotalDisp, reg.Crtc2Pitch, reg.FpHorzStretch,
				reg.FpGenCntl, reg.LvdsPllCntl, reg.TmdsTransmitterCntl,
			} {
				io.SetReg32(r, 0xdeadbeef)
			}

			io.SetPLL(reg.PpllDiv0, 0x70123)
			io.SetPLL(reg.P2pllDiv0, 0x70123)
			io.SetPLL(reg.PpllRefDiv, 7)

			if err := saved.Restore(io, true); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(saved.Registers(), saveState(dev, arch).Registers()); diff != "" {
				t.Errorf("state mismatch (-saved +restored):\n%s", diff)
			}

			if err := dev.Err(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestStateKeepsVolatileBits(t *testing.T) {
	dev := sim.New(sim.Options{})
	io := radeon.NewVGAIO(dev, dev.RAM())
	saved := saveState(dev, radeon.R200)

	// blank the display after the snapshot; a restore mustn't unblank it
	blank := uint32(reg.CrtcDisplayDis | reg.CrtcHsyncDis | reg.CrtcVsyncDis)
	io.SetReg32(reg.CrtcExtCntl, io.Reg32(reg.CrtcExtCntl)|blank)

	if err := saved.Restore(io, false); err != nil {
		t.Fatal(err)
	}

	if got := dev.Reg(reg.CrtcExtCntl) & blank; got != blank {
		t.Errorf("display enable bits: got %#x, want %#x", got, blank)
	}
}

func TestStateRegisters(t *testing.T) {
	dev := sim.New(sim.Options{})

	r100 := saveState(dev, radeon.R100).Registers()
	r200 := saveState(dev, radeon.R200).Registers()

	for _, name := range []string{"CRTC_GEN_CNTL", "PPLL_DIV", "PPLL_DIV_SEL", "VCLK_ECP_CNTL", "FP_GEN_CNTL", "BUS_CNTL"} {
		if _, ok := r100[name]; !ok {
			t.Errorf("R100 state is missing %s", name)
		}
	}

	for _, name := range []string{"CRTC2_GEN_CNTL", "P2PLL_REF_DIV", "P2PLL_DIV", "PIXCLKS_CNTL"} {
		if _, ok := r100[name]; ok {
			t.Errorf("R100 state has %s", name)
		}

		if _, ok := r200[name]; !ok {
			t.Errorf("R200 state is missing %s", name)
		}
	}

	if got := r200["PPLL_REF_DIV"]; got != 12 {
		t.Errorf("PPLL_REF_DIV: got %#x, want 0xc", got)
	}

	s := saveState(dev, radeon.R200).String()
	if !strings.Contains(s, "CRTC_PITCH") || !strings.HasPrefix(s, "BUS_CNTL") {
		t.Errorf("unexpected listing:\n%s", s)
	}
}
