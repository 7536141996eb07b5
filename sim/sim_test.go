package sim_test

import (
	"errors"
	"testing"

	"github.com/c35s/radeonfb/reg"
	"github.com/c35s/radeonfb/sim"
	"golang.org/x/sys/unix"
)

func TestByteWritesMergeIntoRegister(t *testing.T) {
	d := sim.New(sim.Options{})

	d.Write32(reg.BiosScratch0, 0x11223344)
	d.Write8(reg.BiosScratch0+1, 0xaa)
	d.Write16(reg.BiosScratch0+2, 0xbbcc)

	if got, want := d.Read32(reg.BiosScratch0), uint32(0xbbccaa44); got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}

	if got, want := d.Read8(reg.BiosScratch0+3), uint8(0xbb); got != want {
		t.Errorf("byte 3: got %#x, want %#x", got, want)
	}
}

func TestPLLWindow(t *testing.T) {
	d := sim.New(sim.Options{})

	t.Run("write needs WR_EN", func(t *testing.T) {
		d.Write8(reg.ClockCntlIndex, reg.PpllDiv1)
		d.Write32(reg.ClockCntlData, 0x1234)

		if got := d.PLL(reg.PpllDiv1); got == 0x1234 {
			t.Error("write without WR_EN reached the PLL")
		}

		if err := d.Err(); !errors.Is(err, unix.EPERM) {
			t.Errorf("got err %v, want EPERM", err)
		}
	})

	t.Run("write and read back", func(t *testing.T) {
		d.Write8(reg.ClockCntlIndex, reg.PpllDiv1|reg.PllWrEn)
		d.Write32(reg.ClockCntlData, 0x20057)

		d.Write8(reg.ClockCntlIndex, reg.PpllDiv1)
		if got := d.Read32(reg.ClockCntlData); got != 0x20057 {
			t.Errorf("got %#x, want 0x20057", got)
		}
	})

	t.Run("index byte writes keep divider select", func(t *testing.T) {
		d.Write32(reg.ClockCntlIndex, 3<<8)
		d.Write8(reg.ClockCntlIndex, reg.VclkEcpCntl)

		if got := d.Reg(reg.ClockCntlIndex) & reg.PllDivSelMask; got != 3<<8 {
			t.Errorf("got div sel %#x, want 0x300", got)
		}
	})
}

func TestAtomicUpdate(t *testing.T) {
	pending := func(d *sim.Device) bool {
		d.Write8(reg.ClockCntlIndex, reg.PpllRefDiv)
		return d.Read32(reg.ClockCntlData)&reg.PpllAtomicUpdateR != 0
	}

	request := func(d *sim.Device) {
		d.Write8(reg.ClockCntlIndex, reg.PpllRefDiv|reg.PllWrEn)
		d.Write32(reg.ClockCntlData, 12|reg.PpllAtomicUpdateW)
	}

	t.Run("acked", func(t *testing.T) {
		d := sim.New(sim.Options{AckReads: 3})
		request(d)

		for i := 0; i < 3; i++ {
			if !pending(d) {
				t.Fatalf("read %d: update not pending", i)
			}
		}

		if pending(d) {
			t.Error("update still pending after 3 reads")
		}
	})

	t.Run("never acked", func(t *testing.T) {
		d := sim.New(sim.Options{NeverAckPLL: true})
		request(d)

		for i := 0; i < 100; i++ {
			if !pending(d) {
				t.Fatalf("read %d: update acked", i)
			}
		}
	})
}

func TestPaletteAutoIncrement(t *testing.T) {
	d := sim.New(sim.Options{})

	d.Write8(reg.PaletteIndex, 10)
	d.Write32(reg.PaletteData, 0x010203)
	d.Write32(reg.PaletteData, 0x040506)

	if got := d.Palette(10); got != 0x010203 {
		t.Errorf("entry 10: got %#x", got)
	}

	if got := d.Palette(11); got != 0x040506 {
		t.Errorf("entry 11: got %#x", got)
	}
}

func TestReadOnlyRegisters(t *testing.T) {
	d := sim.New(sim.Options{MemSize: 32 << 20})

	d.Write32(reg.ConfigMemsize, 0)

	if got := d.Read32(reg.ConfigMemsize); got != 32<<20 {
		t.Errorf("CONFIG_MEMSIZE changed to %#x", got)
	}

	if err := d.Err(); !errors.Is(err, unix.EPERM) {
		t.Errorf("got err %v, want EPERM", err)
	}
}

func TestFIFO(t *testing.T) {
	if got := sim.New(sim.Options{}).Read32(reg.RbbmStatus) & reg.RbbmFifoCntMask; got != 64 {
		t.Errorf("free entries: got %d, want 64", got)
	}

	if got := sim.New(sim.Options{FIFOStalled: true}).Read32(reg.RbbmStatus) & reg.RbbmFifoCntMask; got != 0 {
		t.Errorf("stalled free entries: got %d, want 0", got)
	}
}

func TestBlit(t *testing.T) {
	d := sim.New(sim.Options{})
	ram := d.RAM()

	// 8 bpp, 64-byte pitch, offset 0
	const pitch = 64
	for i := 0; i < 8; i++ {
		ram[i] = byte(i + 1)
	}

	blit := func(sx, sy, dx, dy, w, h int, dir uint32) {
		d.Write32(reg.DefaultPitchOffset, 1<<reg.PitchOffsetPitchShift)
		d.Write32(reg.DpGuiMasterCntl, 2<<reg.GmcDstDatatypeShift)
		d.Write32(reg.DpCntl, dir)
		d.Write32(reg.SrcYX, uint32(sy)<<16|uint32(sx))
		d.Write32(reg.DstYX, uint32(dy)<<16|uint32(dx))
		d.Write32(reg.DstHeightWidth, uint32(h)<<16|uint32(w))
	}

	t.Run("down a line", func(t *testing.T) {
		blit(0, 0, 0, 1, 8, 1, reg.DstXLeftToRight|reg.DstYTopToBottom)

		for i := 0; i < 8; i++ {
			if got := ram[pitch+i]; got != byte(i+1) {
				t.Errorf("pixel %d: got %d, want %d", i, got, i+1)
			}
		}
	})

	t.Run("overlapping right to left", func(t *testing.T) {
		// walk from the far edge so the overlap isn't clobbered
		blit(7, 0, 8, 0, 8, 1, reg.DstYTopToBottom)

		for i := 0; i < 8; i++ {
			if got := ram[1+i]; got != byte(i+1) {
				t.Errorf("pixel %d: got %d, want %d", 1+i, got, i+1)
			}
		}
	})

	if got := d.Blits(); got != 2 {
		t.Errorf("got %d blits, want 2", got)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	d := sim.New(sim.Options{})
	d.Write32(reg.CrtcOffset, 0x4000)

	dd := d.Dump([]byte{0x55, 0xaa}, "R200", "test")

	d2, err := sim.FromDump(dd, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if got := d2.Reg(reg.CrtcOffset); got != 0x4000 {
		t.Errorf("CRTC_OFFSET: got %#x", got)
	}

	if got, want := d2.PLL(reg.VclkEcpCntl), d.PLL(reg.VclkEcpCntl); got != want {
		t.Errorf("VCLK_ECP_CNTL: got %#x, want %#x", got, want)
	}

	if got := len(d2.RAM()); got != 16<<20 {
		t.Errorf("RAM size: got %d", got)
	}
}
