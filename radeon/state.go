package radeon

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c35s/radeonfb/reg"
)

// State is a snapshot of every register that takes part in a mode: common
// setup, one CRTC and one PLL per head, and the flat panel interface.
type State struct {
	heads  int
	common commonRegs
	crtc   [2]crtcRegs
	fp     fpRegs
	pll    [2]pllRegs
}

// NewState returns an empty snapshot shaped for arch.
func NewState(arch Arch) *State {
	s := &State{heads: 1}
	if arch.HasCRTC2() {
		s.heads = 2
	}

	return s
}

// field is a saved MMIO register. Bits set in keep are volatile: a restore
// leaves them at their live value.
type field struct {
	name string
	reg  int
	keep uint32
	val  *uint32
}

func saveFields(io *VGAIO, ff []field) {
	for _, f := range ff {
		*f.val = io.Reg32(f.reg)
	}
}

func restoreFields(io *VGAIO, ff []field) {
	for _, f := range ff {
		if f.keep != 0 {
			io.SetReg32Masked(f.reg, *f.val, f.keep)
		} else {
			io.SetReg32(f.reg, *f.val)
		}
	}
}

type commonRegs struct {
	ovrClr          uint32
	ovrWidLeftRight uint32
	ovrWidTopBottom uint32
	ov0ScaleCntl    uint32
	subpicCntl      uint32
	viphControl     uint32
	i2cCntl1        uint32
	genIntCntl      uint32
	cap0TrigCntl    uint32
	cap1TrigCntl    uint32
	busCntl         uint32
	surfaceCntl     uint32
}

func (c *commonRegs) fields() []field {
	return []field{
		{"OVR_CLR", reg.OvrClr, 0, &c.ovrClr},
		{"OVR_WID_LEFT_RIGHT", reg.OvrWidLeftRight, 0, &c.ovrWidLeftRight},
		{"OVR_WID_TOP_BOTTOM", reg.OvrWidTopBottom, 0, &c.ovrWidTopBottom},
		{"OV0_SCALE_CNTL", reg.Ov0ScaleCntl, 0, &c.ov0ScaleCntl},
		{"SUBPIC_CNTL", reg.SubpicCntl, 0, &c.subpicCntl},
		{"VIPH_CONTROL", reg.ViphControl, 0, &c.viphControl},
		{"I2C_CNTL_1", reg.I2cCntl1, 0, &c.i2cCntl1},
		{"GEN_INT_CNTL", reg.GenIntCntl, 0, &c.genIntCntl},
		{"CAP0_TRIG_CNTL", reg.Cap0TrigCntl, 0, &c.cap0TrigCntl},
		{"CAP1_TRIG_CNTL", reg.Cap1TrigCntl, 0, &c.cap1TrigCntl},
		{"BUS_CNTL", reg.BusCntl, 0, &c.busCntl},
		{"SURFACE_CNTL", reg.SurfaceCntl, 0, &c.surfaceCntl},
	}
}

// crtcHead is the register address table of one CRTC. Only the primary head
// has the extended control and DAC registers.
type crtcHead struct {
	prefix       string
	genCntl      int
	genKeep      uint32
	hasExt       bool
	hTotalDisp   int
	hSyncStrtWid int
	vTotalDisp   int
	vSyncStrtWid int
	offset       int
	offsetCntl   int
	pitch        int
}

var crtcHeads = [2]crtcHead{
	{
		prefix:       "CRTC",
		genCntl:      reg.CrtcGenCntl,
		hasExt:       true,
		hTotalDisp:   reg.CrtcHTotalDisp,
		hSyncStrtWid: reg.CrtcHSyncStrtWid,
		vTotalDisp:   reg.CrtcVTotalDisp,
		vSyncStrtWid: reg.CrtcVSyncStrtWid,
		offset:       reg.CrtcOffset,
		offsetCntl:   reg.CrtcOffsetCntl,
		pitch:        reg.CrtcPitch,
	},
	{
		prefix:       "CRTC2",
		genCntl:      reg.Crtc2GenCntl,
		genKeep:      reg.Crtc2DispDis | reg.Crtc2HsyncDis | reg.Crtc2VsyncDis,
		hTotalDisp:   reg.Crtc2HTotalDisp,
		hSyncStrtWid: reg.Crtc2HSyncStrtWid,
		vTotalDisp:   reg.Crtc2VTotalDisp,
		vSyncStrtWid: reg.Crtc2VSyncStrtWid,
		offset:       reg.Crtc2Offset,
		offsetCntl:   reg.Crtc2OffsetCntl,
		pitch:        reg.Crtc2Pitch,
	},
}

const (
	crtcExtKeep = reg.CrtcHsyncDis | reg.CrtcVsyncDis | reg.CrtcDisplayDis
	dacKeep     = reg.DacRangeCntl | reg.DacBlanking
	lvdsKeep    = reg.LvdsOn | reg.LvdsBlon | reg.LvdsDisplayDis
)

type crtcRegs struct {
	genCntl      uint32
	extCntl      uint32
	dacCntl      uint32
	hTotalDisp   uint32
	hSyncStrtWid uint32
	vTotalDisp   uint32
	vSyncStrtWid uint32
	offset       uint32
	offsetCntl   uint32
	pitch        uint32
}

func (c *crtcRegs) fields(h *crtcHead) []field {
	ff := []field{{h.prefix + "_GEN_CNTL", h.genCntl, h.genKeep, &c.genCntl}}
	if h.hasExt {
		ff = append(ff,
			field{"CRTC_EXT_CNTL", reg.CrtcExtCntl, crtcExtKeep, &c.extCntl},
			field{"DAC_CNTL", reg.DacCntl, dacKeep, &c.dacCntl})
	}

	return append(ff,
		field{h.prefix + "_H_TOTAL_DISP", h.hTotalDisp, 0, &c.hTotalDisp},
		field{h.prefix + "_H_SYNC_STRT_WID", h.hSyncStrtWid, 0, &c.hSyncStrtWid},
		field{h.prefix + "_V_TOTAL_DISP", h.vTotalDisp, 0, &c.vTotalDisp},
		field{h.prefix + "_V_SYNC_STRT_WID", h.vSyncStrtWid, 0, &c.vSyncStrtWid},
		field{h.prefix + "_OFFSET", h.offset, 0, &c.offset},
		field{h.prefix + "_OFFSET_CNTL", h.offsetCntl, 0, &c.offsetCntl},
		field{h.prefix + "_PITCH", h.pitch, 0, &c.pitch})
}

type fpRegs struct {
	hTotalDisp   uint32
	vTotalDisp   uint32
	hSyncStrtWid uint32
	vSyncStrtWid uint32
	genCntl      uint32
	horzStretch  uint32
	vertStretch  uint32
	lvdsGenCntl  uint32
	lvdsPllCntl  uint32
	tmdsCntl     uint32
}

func (f *fpRegs) fields() []field {
	return []field{
		{"FP_CRTC_H_TOTAL_DISP", reg.FpCrtcHTotalDisp, 0, &f.hTotalDisp},
		{"FP_CRTC_V_TOTAL_DISP", reg.FpCrtcVTotalDisp, 0, &f.vTotalDisp},
		{"FP_H_SYNC_STRT_WID", reg.FpHSyncStrtWid, 0, &f.hSyncStrtWid},
		{"FP_V_SYNC_STRT_WID", reg.FpVSyncStrtWid, 0, &f.vSyncStrtWid},
		{"FP_GEN_CNTL", reg.FpGenCntl, 0, &f.genCntl},
		{"FP_HORZ_STRETCH", reg.FpHorzStretch, 0, &f.horzStretch},
		{"FP_VERT_STRETCH", reg.FpVertStretch, 0, &f.vertStretch},
		{"LVDS_GEN_CNTL", reg.LvdsGenCntl, lvdsKeep, &f.lvdsGenCntl},
		{"LVDS_PLL_CNTL", reg.LvdsPllCntl, 0, &f.lvdsPllCntl},
		{"TMDS_TRANSMITTER_CNTL", reg.TmdsTransmitterCntl, 0, &f.tmdsCntl},
	}
}

// pllHead is the PLL register index table of one head. The primary PLL has
// four divider sets picked by CLOCK_CNTL_INDEX; the secondary has one.
type pllHead struct {
	prefix    string
	clkName   string
	cntl      int
	refDiv    int
	div       int // first divider set
	htotal    int
	clk       int // clock source and postscale
	srcMask   uint32
	srcCPU    uint32
	srcPLL    uint32
	postscale uint32
	divSel    bool
}

var pllHeads = [2]pllHead{
	{
		prefix:    "PPLL",
		clkName:   "VCLK_ECP_CNTL",
		cntl:      reg.PpllCntl,
		refDiv:    reg.PpllRefDiv,
		div:       reg.PpllDiv0,
		htotal:    reg.HtotalCntl,
		clk:       reg.VclkEcpCntl,
		srcMask:   reg.VclkSrcSelMask,
		srcCPU:    reg.VclkSrcCPUClk,
		srcPLL:    reg.VclkSrcPpllClk,
		postscale: reg.EcpDivMask | reg.PixclkAlwaysOnb | reg.PixclkDacAlwaysOnb,
		divSel:    true,
	},
	{
		prefix:    "P2PLL",
		clkName:   "PIXCLKS_CNTL",
		cntl:      reg.P2pllCntl,
		refDiv:    reg.P2pllRefDiv,
		div:       reg.P2pllDiv0,
		htotal:    reg.Htotal2Cntl,
		clk:       reg.PixclksCntl,
		srcMask:   reg.Pix2clkSrcSelMask,
		srcCPU:    reg.Pix2clkSrcCPUClk,
		srcPLL:    reg.Pix2clkSrcP2pllClk,
		postscale: reg.Pix2clkAlwaysOnb | reg.Pix2clkDacAlwaysOnb,
	},
}

type pllRegs struct {
	divSel uint32 // divider set in use, primary head only
	refDiv uint32
	div    uint32
	clk    uint32
}

const (
	pllResetBits = reg.PpllReset | reg.PpllAtomicUpdateEn | reg.PpllVgaAtomicUpdateEn
	pllClearBits = pllResetBits | reg.PpllSleep
	pllDivMask   = reg.PpllFbDivMask | reg.PpllPostDivMask

	// pllUpdateTries bounds the atomic update poll. Some chips never
	// acknowledge an update, so running out isn't fatal by default.
	pllUpdateTries = 10000

	// pllLatchTries bounds the divider write-and-verify loop.
	pllLatchTries = 100
)

// pllSettleDelay is how long the PLL gets to lock before the pixel clock is
// switched back to it.
var pllSettleDelay = 5 * time.Millisecond

func (p *pllRegs) save(io *VGAIO, h *pllHead) {
	if h.divSel {
		p.divSel = io.Reg32(reg.ClockCntlIndex) & reg.PllDivSelMask >> 8
	}

	p.refDiv = io.PLL(h.refDiv)
	p.div = io.PLL(h.div + int(p.divSel))
	p.clk = io.PLL(h.clk)
}

// restore reprograms the PLL with the atomic update handshake. The pixel
// clock runs from the CPU clock while the PLL is in reset. A missing
// acknowledgement or a divider that won't latch is logged and skipped unless
// strict is set; the handshake is completed either way so the PLL isn't left
// in reset.
func (p *pllRegs) restore(io *VGAIO, h *pllHead, strict bool) error {
	var soft error
	fail := func(err error) {
		if soft == nil {
			soft = err
		}

		if !strict {
			slog.Warn("radeon: PLL update", "pll", h.prefix, "err", err)
		}
	}

	io.SetPLLMasked(h.clk, h.srcCPU, ^h.srcMask)
	io.SetPLLMasked(h.cntl, pllResetBits, ^uint32(pllResetBits))

	if h.divSel {
		io.SetReg32Masked(reg.ClockCntlIndex, p.divSel<<8, ^uint32(reg.PllDivSelMask))
	}

	div := h.div + int(p.divSel)
	latched := false
	for i := 0; i < pllLatchTries && !latched; i++ {
		io.SetPLLMasked(h.refDiv, p.refDiv, ^uint32(reg.PpllRefDivMask))
		io.SetPLLMasked(div, p.div, ^uint32(pllDivMask))

		latched = io.PLL(h.refDiv)&reg.PpllRefDivMask == p.refDiv&reg.PpllRefDivMask &&
			io.PLL(div)&pllDivMask == p.div&pllDivMask
	}

	if !latched {
		fail(fmt.Errorf("%w: dividers didn't latch after %d writes", ErrPLLUpdateTimeout, pllLatchTries))
	}

	io.SetPLL(h.htotal, 0)

	if !waitPLLUpdate(io, h) {
		fail(fmt.Errorf("%w: previous update still pending", ErrPLLUpdateTimeout))
	}

	io.SetPLLMasked(h.refDiv, reg.PpllAtomicUpdateW, ^uint32(reg.PpllAtomicUpdateW))

	if !waitPLLUpdate(io, h) {
		fail(fmt.Errorf("%w: no ack after %d polls", ErrPLLUpdateTimeout, pllUpdateTries))
	}

	io.SetPLLMasked(h.cntl, 0, ^uint32(pllClearBits))
	time.Sleep(pllSettleDelay)
	io.SetPLLMasked(h.clk, h.srcPLL, ^h.srcMask)

	if strict && soft != nil {
		return fmt.Errorf("%s: %w", h.prefix, soft)
	}

	return nil
}

func waitPLLUpdate(io *VGAIO, h *pllHead) bool {
	for i := 0; i < pllUpdateTries; i++ {
		if io.PLL(h.refDiv)&reg.PpllAtomicUpdateR == 0 {
			return true
		}
	}

	return false
}

// commitPostscale writes the pixel clock postscale and gating bits. It runs
// after the CRTC timing is in place.
func (p *pllRegs) commitPostscale(io *VGAIO, h *pllHead) {
	io.SetPLLMasked(h.clk, p.clk, ^h.postscale)
}

func (s *State) crtcFields(head int) []field {
	return s.crtc[head].fields(&crtcHeads[head])
}

// Save reads every register of the snapshot from the hardware. It doesn't
// write anything except the PLL index.
func (s *State) Save(io *VGAIO) {
	saveFields(io, s.common.fields())
	for h := 0; h < s.heads; h++ {
		saveFields(io, s.crtcFields(h))
		s.pll[h].save(io, &pllHeads[h])
	}

	saveFields(io, s.fp.fields())
}

// Restore writes the snapshot back to the hardware: common registers, then
// the PLLs, then the CRTCs and the flat panel, and finally the pixel clock
// postscale. Volatile display and sync enable bits are preserved. With
// strictPLL set, an unacknowledged PLL update is an ErrPLLUpdateTimeout;
// otherwise it is logged and ignored.
func (s *State) Restore(io *VGAIO, strictPLL bool) error {
	restoreFields(io, s.common.fields())

	var err error
	for h := 0; h < s.heads; h++ {
		if e := s.pll[h].restore(io, &pllHeads[h], strictPLL); e != nil && err == nil {
			err = e
		}
	}

	for h := 0; h < s.heads; h++ {
		restoreFields(io, s.crtcFields(h))
	}

	restoreFields(io, s.fp.fields())

	for h := 0; h < s.heads; h++ {
		s.pll[h].commitPostscale(io, &pllHeads[h])
	}

	return err
}

// Registers returns the snapshot as a map from register name to value.
func (s *State) Registers() map[string]uint32 {
	m := make(map[string]uint32)
	add := func(ff []field) {
		for _, f := range ff {
			m[f.name] = *f.val
		}
	}

	add(s.common.fields())
	for h := 0; h < s.heads; h++ {
		add(s.crtcFields(h))

		ph, p := &pllHeads[h], &s.pll[h]
		m[ph.prefix+"_REF_DIV"] = p.refDiv
		m[ph.prefix+"_DIV"] = p.div
		m[ph.clkName] = p.clk
		if ph.divSel {
			m[ph.prefix+"_DIV_SEL"] = p.divSel
		}
	}

	add(s.fp.fields())
	return m
}

func (s *State) String() string {
	regs := s.Registers()
	names := make([]string, 0, len(regs))
	for n := range regs {
		names = append(names, n)
	}

	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%-22s %#08x\n", n, regs[n])
	}

	return b.String()
}
