package radeon_test

import (
	"encoding/binary"
	"testing"

	"github.com/c35s/radeonfb/radeon"
	"github.com/c35s/radeonfb/sim"
)

// newDriver creates a driver on a fresh simulated device.
func newDriver(t *testing.T, cfg radeon.Config, opts sim.Options) (*radeon.Driver, *sim.Device) {
	t.Helper()

	dev := sim.New(opts)
	cfg.Regs = dev
	cfg.RAM = dev.RAM()

	d, err := radeon.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	return d, dev
}

// openMode opens a VESA mode and closes it when the test ends.
func openMode(t *testing.T, d *radeon.Driver, mode string, bpp int) *radeon.Surface {
	t.Helper()

	s, err := d.Open(radeon.Configuration{Mode: mustMode(t, mode), BitsPerPixel: bpp})
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}

// saveState snapshots the live registers of dev.
func saveState(dev *sim.Device, arch radeon.Arch) *radeon.State {
	s := radeon.NewState(arch)
	s.Save(radeon.NewVGAIO(dev, dev.RAM()))
	return s
}

type panelROM struct {
	xres, yres int

	// recommended dividers: reference, encoded post, feedback
	refDiv, postDiv, fbkDiv int

	// native timing block, if timing is set
	timing    bool
	dotClock  int
	hTotal    int
	hDisplay  int
	hSyncStrt int
	hSyncWid  int
	vTotal    int
	vDisplay  int
	vSync     int
}

// bytes lays the panel out as a video BIOS: header at 0x100, panel table
// at 0x300 and the timing block at 0x400.
func (p panelROM) bytes() []byte {
	rom := make([]byte, 0x800)
	rom[0], rom[1], rom[2] = 0x55, 0xaa, 4

	put16 := func(off, v int) { binary.LittleEndian.PutUint16(rom[off:], uint16(v)) }

	put16(0x48, 0x100)
	put16(0x100+0x40, 0x300)

	const pt = 0x300
	copy(rom[pt+1:], "SIM PANEL")
	put16(pt+25, p.xres)
	put16(pt+27, p.yres)
	put16(pt+46, p.refDiv)
	rom[pt+48] = byte(p.postDiv)
	put16(pt+49, p.fbkDiv)

	if p.timing {
		const tb = 0x400
		put16(pt+64, tb)
		put16(tb, p.xres)
		put16(tb+2, p.yres)
		rom[tb+9] = byte(p.dotClock)
		put16(tb+17, p.hTotal)
		put16(tb+19, p.hDisplay)
		rom[tb+21] = byte(p.hSyncStrt)
		rom[tb+23] = byte(p.hSyncWid)
		rom[tb+24] = byte(p.vTotal)
		rom[tb+26] = byte(p.vDisplay)
		rom[tb+28] = byte(p.vSync)
	}

	return rom
}
