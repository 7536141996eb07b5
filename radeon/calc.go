package radeon

import (
	"github.com/c35s/radeonfb/bios"
	"github.com/c35s/radeonfb/reg"
)

// modeParams is everything CalcState needs besides the live hardware.
type modeParams struct {
	cfg     Configuration
	timing  CrtcTiming
	div     Dividers
	offset  int // framebuffer offset in video memory
	monitor MonitorType
	panel   *bios.PanelInfo
}

// ecpDivThreshold is the pixel clock (10 kHz) above which the ECP clock is
// halved.
const ecpDivThreshold = 17500

// calcState derives the register state for a mode. It starts from the live
// hardware so bits the driver doesn't own survive, and only reads registers.
// The secondary head, when present, mirrors the primary one.
func calcState(io *VGAIO, arch Arch, p modeParams) *State {
	s := NewState(arch)
	s.Save(io)

	s.common = commonRegs{busCntl: s.common.busCntl}

	c := &s.crtc[0]
	t := p.timing
	c.genCntl = reg.CrtcExtDispEn | reg.CrtcEn | t.Format<<reg.CrtcPixWidthShift
	c.extCntl = c.extCntl&crtcExtKeep | reg.VgaAtiLinear | reg.XcrtCntEn | reg.CrtcCrtOn
	c.dacCntl = c.dacCntl&dacKeep | reg.DacMaskAll | reg.DacVgaAdrEn | reg.Dac8BitEn
	c.hTotalDisp = t.HTotalDisp
	c.hSyncStrtWid = t.HSyncStrtWid
	c.vTotalDisp = t.VTotalDisp
	c.vSyncStrtWid = t.VSyncStrtWid
	c.offset = uint32(p.offset)
	c.offsetCntl = 0
	c.pitch = t.Pitch

	pl := &s.pll[0]
	pl.divSel = 3
	pl.refDiv = pl.refDiv&^reg.PpllRefDivMask | uint32(p.div.RefDiv)&reg.PpllRefDivMask
	pl.div = p.div.PLLDiv()

	ecp := uint32(0)
	if pixelClock(p) > ecpDivThreshold {
		ecp = 1
	}

	pl.clk = pl.clk&^reg.EcpDivMask | ecp<<reg.EcpDivShift | reg.PixclkAlwaysOnb | reg.PixclkDacAlwaysOnb

	if s.heads > 1 {
		c2 := &s.crtc[1]
		gen := c2.genCntl & (reg.Crtc2En | reg.Crtc2Crt2On | reg.Crtc2DispDis | reg.Crtc2HsyncDis | reg.Crtc2VsyncDis)

		*c2 = *c
		c2.genCntl = gen | t.Format<<reg.Crtc2PixWidthShift
		c2.extCntl = 0
		c2.dacCntl = 0

		p2 := &s.pll[1]
		p2.refDiv = p2.refDiv&^reg.PpllRefDivMask | uint32(p.div.RefDiv)&reg.PpllRefDivMask
		p2.div = p.div.PLLDiv()
		p2.clk |= reg.Pix2clkAlwaysOnb | reg.Pix2clkDacAlwaysOnb
	}

	calcFP(&s.fp, p)
	return s
}

// pixelClock returns the requested pixel clock in 10 kHz.
func pixelClock(p modeParams) int {
	return p.cfg.Mode.PixelFreq / 10
}

// calcFP programs the flat panel interface. CRT setups keep whatever the
// panel registers held.
func calcFP(fp *fpRegs, p modeParams) {
	if !p.monitor.IsPanel() || p.panel == nil {
		return
	}

	t := p.timing
	fp.hTotalDisp = t.HTotalDisp
	fp.vTotalDisp = t.VTotalDisp
	fp.hSyncStrtWid = t.HSyncStrtWid
	fp.vSyncStrtWid = t.VSyncStrtWid

	fp.horzStretch, fp.vertStretch = ComputePanelStretch(p.cfg.Mode.Width, p.cfg.Mode.Height,
		p.panel.XRes, p.panel.YRes, fp.horzStretch, fp.vertStretch)

	fp.genCntl &^= reg.FpSelCrtc2 | reg.FpRmxHvsyncControlEn | reg.FpDfpSyncSel | reg.FpCrtSyncSel |
		reg.FpCrtcLock8Dot | reg.FpUseShadowEn | reg.FpCrtcUseShadowVend | reg.FpCrtSyncAlt
	fp.genCntl |= reg.FpCrtcDontShadowVpar | reg.FpCrtcDontShadowHend

	switch p.monitor {
	case MonitorDFP:
		fp.genCntl |= reg.FpFpon | reg.FpTmdsEn
		fp.tmdsCntl = fp.tmdsCntl&^reg.TmdsPllRst | reg.TmdsPllEn

	case MonitorLCD:
		fp.lvdsGenCntl = fp.lvdsGenCntl&^reg.LvdsDisplayDis | reg.LvdsOn | reg.LvdsBlon | reg.LvdsEn
	}
}
