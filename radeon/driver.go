// Package radeon sets display modes on ATI Radeon R100 through R300 class
// chips. It computes PLL dividers and CRTC timing for a requested mode,
// saves the console's register state, programs the new state, and puts the
// console back on close. It also drives the hardware cursor and the 2D
// engine's screen to screen copy.
//
// The caller maps the register and video memory windows and hands them in
// through Config; the package doesn't touch the PCI bus.
package radeon

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/mmio"
	"github.com/c35s/radeonfb/reg"
)

// Config describes a device.
type Config struct {

	// Arch is the chip family, e.g. "R200" or "M9". It is required.
	Arch string

	// Model is a marketing name used in log messages.
	Model string

	// Regs is the memory-mapped register window. It is required.
	Regs mmio.Window

	// RAM is the memory-mapped video memory window. It is required.
	RAM mmio.Window

	// ROM is the video BIOS image. If it is empty or invalid, architecture
	// defaults are used for the PLL and no flat panel is assumed.
	ROM []byte

	// Monitor, if set, overrides monitor detection.
	Monitor MonitorType

	// TrustBIOSDividers makes the driver use the PLL dividers the ROM
	// recommends for a flat panel's native mode instead of computing them.
	TrustBIOSDividers bool

	// StrictPLLUpdate turns a PLL update the chip never acknowledges into
	// an error. By default it is logged and ignored, which some chip
	// revisions need.
	StrictPLLUpdate bool
}

// FramebufferAlign is the alignment of the framebuffer in video memory.
const FramebufferAlign = 4096

// Driver owns one device. Open and Close are serialized; everything else
// must be serialized by the caller.
type Driver struct {
	cfg     Config
	arch    Arch
	io      *VGAIO
	monitor MonitorType
	pll     PLLInfo
	panel   *bios.PanelInfo
	memSize int
	arena   *Arena
	cursor  *Cursor
	accel   *Accel

	mu      sync.Mutex
	old     *State // console state, captured by the first Open
	cur     *State
	surface *Surface
}

// New creates a driver for the device described by cfg. It reads the
// device but doesn't change it.
func New(cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	arch, err := ParseArch(cfg.Arch)
	if err != nil {
		panic(err) // validated
	}

	io := NewVGAIO(cfg.Regs, cfg.RAM)
	d := &Driver{
		cfg:     cfg,
		arch:    arch,
		io:      io,
		monitor: cfg.Monitor,
		pll:     arch.DefaultPLL(),
		memSize: io.MemorySize(),
		accel:   newAccel(io),
	}

	if d.memSize == 0 || d.memSize > cfg.RAM.Size() {
		d.memSize = cfg.RAM.Size()
	}

	if len(cfg.ROM) > 0 {
		d.loadBIOS(cfg.ROM)
	}

	if d.monitor == MonitorNone {
		d.monitor = detectMonitor(io, arch)
	}

	d.arena, err = NewArena(d.memSize)
	if err != nil {
		return nil, err
	}

	cr, err := d.arena.Reserve(cursorBytes, cursorAlign)
	if err != nil {
		return nil, err
	}

	d.cursor = newCursor(io, cr.Offset)

	slog.Info("radeon: found device",
		"arch", arch, "model", cfg.Model, "mem", d.memSize, "monitor", d.monitor)

	return d, nil
}

func (d *Driver) loadBIOS(rom []byte) {
	if err := bios.Verify(rom); err != nil {
		slog.Warn("radeon: ignoring video BIOS", "err", err)
		return
	}

	info, err := bios.Parse(rom)
	if err != nil {
		slog.Warn("radeon: ignoring video BIOS", "err", err)
		return
	}

	d.pll = PLLInfoFromBIOS(info.PLL, d.pll)
	d.panel = info.Panel

	if p := d.panel; p != nil {
		slog.Debug("radeon: flat panel", "name", p.Name, "xres", p.XRes, "yres", p.YRes,
			"manual_timing", p.HasManualTiming())
	}
}

// detectMonitor guesses what the primary head drives from the state the
// BIOS left behind.
func detectMonitor(io *VGAIO, arch Arch) MonitorType {
	if arch.IsMobility() && io.Reg32(reg.LvdsGenCntl)&reg.LvdsOn != 0 {
		return MonitorLCD
	}

	if io.Reg32(reg.FpGenCntl)&reg.FpFpon != 0 {
		return MonitorDFP
	}

	return MonitorCRT
}

// Arch returns the chip family.
func (d *Driver) Arch() Arch { return d.arch }

// Monitor returns the monitor type in use.
func (d *Driver) Monitor() MonitorType { return d.monitor }

// PLL returns the PLL constants in use.
func (d *Driver) PLL() PLLInfo { return d.pll }

// Panel returns the flat panel the ROM describes, or nil.
func (d *Driver) Panel() *bios.PanelInfo { return d.panel }

// MemSize returns the size of video memory.
func (d *Driver) MemSize() int { return d.memSize }

// HardwareCursor returns the cursor of the primary head.
func (d *Driver) HardwareCursor() *Cursor { return d.cursor }

// Accel returns the 2D engine.
func (d *Driver) Accel() *Accel { return d.accel }

// BestConfiguration adapts cfg to the attached display. On a flat panel,
// the panel's own timing replaces a request for its native resolution, and
// larger modes are clipped to the panel.
func (d *Driver) BestConfiguration(cfg Configuration) Configuration {
	p := d.panel
	if !d.monitor.IsPanel() || p == nil || p.XRes <= 0 || p.YRes <= 0 {
		return cfg
	}

	m := cfg.Mode
	if m.Width == p.XRes && m.Height == p.YRes && p.HasManualTiming() {
		pm := modeFromBIOS(p.Timing.Mode())
		if err := pm.Validate(); err != nil {
			slog.Warn("radeon: ignoring panel timing", "err", err)
		} else {
			cfg.Mode = pm
			return cfg
		}
	}

	m.Width = min(m.Width, p.XRes)
	m.Height = min(m.Height, p.YRes)
	cfg.Mode = m

	return cfg
}

func (d *Driver) dividers(cfg Configuration) (Dividers, error) {
	p := d.panel
	if d.cfg.TrustBIOSDividers && d.monitor.IsPanel() && p != nil &&
		cfg.Mode.Width == p.XRes && cfg.Mode.Height == p.YRes {

		if div, ok := panelDividers(p); ok {
			return div, nil
		}

		slog.Warn("radeon: panel has no usable BIOS dividers", "panel", p.Name)
	}

	return ComputeDividers(cfg.Mode.PixelFreq/10, d.pll)
}

// depths Open supports
var openDepths = map[int]bool{8: true, 15: true, 16: true, 24: true, 32: true}

// Open switches the display to cfg and returns the framebuffer. The
// configuration is checked, the dividers computed and the framebuffer
// claimed before any register is written; if any of that fails the
// hardware is left as it was. The display is blanked while the new state
// is loaded and its power state restored afterwards.
func (d *Driver) Open(cfg Configuration) (*Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface != nil {
		return nil, ErrAlreadyOpen
	}

	if !openDepths[cfg.BitsPerPixel] {
		return nil, fmt.Errorf("%w: %w: %d bpp", ErrUnsupportedConfig, ErrUnsupportedPixelFormat,
			cfg.BitsPerPixel)
	}

	cfg = d.BestConfiguration(cfg)

	timing, err := ComputeCrtcTiming(cfg.Mode, cfg.BitsPerPixel)
	if err != nil {
		if errors.Is(err, ErrUnsupportedConfig) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConfig, err)
	}

	div, err := d.dividers(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConfig, err)
	}

	region, err := d.arena.Claim(cfg.BytesPerScreen(), FramebufferAlign)
	if err != nil {
		return nil, err
	}

	cur := calcState(d.io, d.arch, modeParams{
		cfg:     cfg,
		timing:  timing,
		div:     div,
		offset:  region.Offset,
		monitor: d.monitor,
		panel:   d.panel,
	})

	if d.old == nil {
		d.old = NewState(d.arch)
		d.old.Save(d.io)
	}

	d.io.DisableIRQ()

	dpms := d.dpms()
	d.setDpms(DpmsOff)
	defer d.setDpms(dpms)

	if err := cur.Restore(d.io, d.cfg.StrictPLLUpdate); err != nil {
		err = errors.Join(err, d.old.Restore(d.io, false))
		d.arena.Release()
		return nil, err
	}

	d.cur = cur
	d.setPalette(1)
	d.clear(region)

	accel := d.accel
	if err := accel.init(region, cfg); err != nil {
		slog.Warn("radeon: 2D engine unavailable", "err", err)
		accel = nil
	}

	d.surface = newSurface(d, region, cfg, accel)

	slog.Info("radeon: mode set", "mode", cfg, "freq_10khz", div.Freq(d.pll),
		"feedback", div.Feedback, "post", div.Post(), "offset", fmt.Sprintf("%#x", region.Offset))
	slog.Debug("radeon: registers\n" + cur.String())

	return d.surface, nil
}

// Close hides the cursor and restores the console state captured by the
// first Open. The display power state is restored even if the state
// restore fails.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return ErrNotOpen
	}

	d.cursor.reset()

	dpms := d.dpms()
	d.setDpms(DpmsOff)

	err := d.old.Restore(d.io, d.cfg.StrictPLLUpdate)

	d.setDpms(dpms)
	d.arena.Release()
	d.surface.closed = true
	d.surface = nil
	d.cur = nil

	return err
}

// State returns the register state loaded by Open, or nil if the device
// isn't open.
func (d *Driver) State() *State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cur
}

func (d *Driver) setPalette(brightness float64) {
	for i := 0; i < 256; i++ {
		v := uint8(min(float64(i)*brightness, 255))
		d.io.SetPalette(i, v, v, v)
	}
}

func (d *Driver) clear(r Region) {
	ram := d.io.RAM()

	i := r.Offset
	for ; i+4 <= r.End(); i += 4 {
		ram.Write32(i, 0)
	}

	for ; i < r.End(); i++ {
		ram.Write8(i, 0)
	}
}

func (cfg Config) validate() error {
	if _, err := ParseArch(cfg.Arch); err != nil {
		return err
	}

	if cfg.Regs == nil {
		return errors.New("register window is not set")
	}

	if cfg.Regs.Size() < reg.WindowSize {
		return fmt.Errorf("register window is too small: %#x < %#x", cfg.Regs.Size(), reg.WindowSize)
	}

	if cfg.RAM == nil {
		return errors.New("video memory window is not set")
	}

	return nil
}

func (cfg Config) withDefaults() Config {
	if cfg.Model == "" {
		cfg.Model = "ATI Radeon " + cfg.Arch
	}

	return cfg
}
