// Package reg lists the Radeon MMIO register offsets, PLL register indices,
// and the bit fields the mode-setting code touches.
package reg

// mmio register offsets

const (
	MMIndex        = 0x0000 // indirect register index (RW)
	MMData         = 0x0004 // indirect register data (RW)
	ClockCntlIndex = 0x0008 // PLL register index (RW)
	ClockCntlData  = 0x000c // PLL register data (RW)

	BiosScratch0 = 0x0010 // BIOS scratch registers 0-7 (RW)
	BiosScratch1 = 0x0014
	BiosScratch2 = 0x0018
	BiosScratch3 = 0x001c
	BiosScratch4 = 0x0020
	BiosScratch5 = 0x0024
	BiosScratch6 = 0x0028
	BiosScratch7 = 0x002c

	BusCntl       = 0x0030 // bus interface control (RW)
	GenIntCntl    = 0x0040 // interrupt enables (RW)
	GenIntStatus  = 0x0044 // interrupt status, write 1 to ack (RW)
	CrtcGenCntl   = 0x0050 // primary CRTC control (RW)
	CrtcExtCntl   = 0x0054 // primary CRTC extended control (RW)
	DacCntl       = 0x0058 // primary DAC control (RW)
	CrtcStatus    = 0x005c // primary CRTC status (R)
	DacCntl2      = 0x007c // DAC routing (RW)
	I2cCntl1      = 0x0094 // DDC/I2C control (RW)
	PaletteIndex  = 0x00b0 // palette write index (W)
	PaletteData   = 0x00b4 // palette data, auto-increments the index (RW)
	RbbmSoftRst   = 0x00f0 // engine soft reset (RW)
	ConfigMemsize = 0x00f8 // installed video memory (R)

	CrtcHTotalDisp   = 0x0200 // primary horizontal total and display end (RW)
	CrtcHSyncStrtWid = 0x0204 // primary horizontal sync start and width (RW)
	CrtcVTotalDisp   = 0x0208 // primary vertical total and display end (RW)
	CrtcVSyncStrtWid = 0x020c // primary vertical sync start and width (RW)
	CrtcOffset       = 0x0224 // primary scanout offset in video memory (RW)
	CrtcOffsetCntl   = 0x0228 // primary scanout offset control (RW)
	CrtcPitch        = 0x022c // primary pitch in units of 8 pixels (RW)

	OvrClr          = 0x0230 // overscan color (RW)
	OvrWidLeftRight = 0x0234 // overscan width left/right (RW)
	OvrWidTopBottom = 0x0238 // overscan width top/bottom (RW)

	FpCrtcHTotalDisp = 0x0250 // flat panel horizontal total and display (RW)
	FpCrtcVTotalDisp = 0x0254 // flat panel vertical total and display (RW)

	CurOffset      = 0x0260 // cursor image offset in video memory (RW)
	CurHorzVertPos = 0x0264 // cursor position (RW)
	CurHorzVertOff = 0x0268 // cursor hotspot offset (RW)
	CurClr0        = 0x026c // mono cursor color 0 (RW)
	CurClr1        = 0x0270 // mono cursor color 1 (RW)

	FpGenCntl           = 0x0284 // flat panel control (RW)
	FpHorzStretch       = 0x028c // flat panel horizontal scaler (RW)
	FpVertStretch       = 0x0290 // flat panel vertical scaler (RW)
	TmdsTransmitterCntl = 0x02a4 // TMDS transmitter control (RW)
	FpHSyncStrtWid      = 0x02c4 // flat panel horizontal sync (RW)
	FpVSyncStrtWid      = 0x02c8 // flat panel vertical sync (RW)
	LvdsGenCntl         = 0x02d0 // LVDS control (RW)
	LvdsPllCntl         = 0x02d4 // LVDS PLL control (RW)

	Crtc2HTotalDisp   = 0x0300 // secondary horizontal total and display end (RW)
	Crtc2HSyncStrtWid = 0x0304 // secondary horizontal sync start and width (RW)
	Crtc2VTotalDisp   = 0x0308 // secondary vertical total and display end (RW)
	Crtc2VSyncStrtWid = 0x030c // secondary vertical sync start and width (RW)
	Crtc2Offset       = 0x0324 // secondary scanout offset (RW)
	Crtc2OffsetCntl   = 0x0328 // secondary scanout offset control (RW)
	Crtc2Pitch        = 0x032c // secondary pitch (RW)
	Crtc2GenCntl      = 0x03f8 // secondary CRTC control (RW)

	Ov0ScaleCntl = 0x0420 // video overlay scaler control (RW)
	SubpicCntl   = 0x0540 // subpicture control (RW)
	Cap0TrigCntl = 0x0950 // capture unit 0 trigger (RW)
	Cap1TrigCntl = 0x09c0 // capture unit 1 trigger (RW)
	SurfaceCntl  = 0x0b00 // surface byte swapping (RW)
	ViphControl  = 0x0c40 // video input port control (RW)
	RbbmStatus   = 0x0e40 // engine status and command FIFO free entries (R)

	SrcPitchOffset       = 0x1428 // 2D source pitch and offset (RW)
	DstPitchOffset       = 0x142c // 2D destination pitch and offset (RW)
	SrcYX                = 0x1434 // 2D source coordinates (W)
	DstYX                = 0x1438 // 2D destination coordinates (W)
	DstHeightWidth       = 0x143c // 2D rectangle size, triggers the blit (W)
	DpGuiMasterCntl      = 0x146c // 2D datapath master control (RW)
	DpBrushBkgdClr       = 0x1478 // brush background color (RW)
	DpBrushFrgdClr       = 0x147c // brush foreground color (RW)
	DpSrcFrgdClr         = 0x15d8 // source foreground color (RW)
	DpSrcBkgdClr         = 0x15dc // source background color (RW)
	DpCntl               = 0x16c0 // 2D direction control (RW)
	DpDatatype           = 0x16c4 // 2D destination datatype (RW)
	DpMix                = 0x16c8 // 2D raster operation (RW)
	DpWriteMsk           = 0x16cc // 2D plane write mask (RW)
	DefaultPitchOffset   = 0x16e0 // default pitch and offset (RW)
	DefaultScBottomRight = 0x16e8 // default scissor (RW)
	ScTopLeft            = 0x16ec // scissor top left (RW)
	ScBottomRight        = 0x16f0 // scissor bottom right (RW)

	// WindowSize is the size of the register aperture.
	WindowSize = 0x4000
)

// pll register indices (accessed through ClockCntlIndex/ClockCntlData)

const (
	PpllCntl    = 0x02 // primary PLL control
	PpllRefDiv  = 0x03 // primary PLL reference divider and atomic update bits
	PpllDiv0    = 0x04 // primary PLL feedback/post dividers, set 0
	PpllDiv1    = 0x05
	PpllDiv2    = 0x06
	PpllDiv3    = 0x07 // the divider set the driver programs
	VclkEcpCntl = 0x08 // pixel clock source and ECP divider
	HtotalCntl  = 0x09 // primary horizontal total fine adjust
	P2pllCntl   = 0x2a // secondary PLL control
	P2pllRefDiv = 0x2b // secondary PLL reference divider and atomic update bits
	P2pllDiv0   = 0x2c // secondary PLL feedback/post dividers
	PixclksCntl = 0x2d // secondary pixel clock source
	Htotal2Cntl = 0x2e // secondary horizontal total fine adjust

	// NumPLL is the size of the PLL register space.
	NumPLL = 0x40
)

// CLOCK_CNTL_INDEX bits

const (
	PllWrEn       = 1 << 7 // data writes reach the PLL register
	PllDivSelMask = 3 << 8 // PPLL_DIV_n used by the pixel clock
	PllIndexMask  = 0x3f
)

// PPLL_CNTL and P2PLL_CNTL bits

const (
	PpllReset             = 1 << 0
	PpllSleep             = 1 << 1
	PpllAtomicUpdateEn    = 1 << 16
	PpllVgaAtomicUpdateEn = 1 << 17
)

// PPLL_REF_DIV and P2PLL_REF_DIV bits

const (
	PpllRefDivMask    = 0x3ff
	PpllAtomicUpdateR = 1 << 15 // update pending (R)
	PpllAtomicUpdateW = 1 << 15 // request update (W)
	PpllFbDivMask     = 0x7ff   // feedback divider field of PPLL_DIV_n
	PpllPostDivMask   = 7 << 16 // post divider field of PPLL_DIV_n
	PpllPostDivShift  = 16
)

// VCLK_ECP_CNTL and PIXCLKS_CNTL bits

const (
	VclkSrcSelMask      = 3
	VclkSrcCPUClk       = 0
	VclkSrcPpllClk      = 3
	PixclkAlwaysOnb     = 1 << 6
	PixclkDacAlwaysOnb  = 1 << 7
	EcpDivMask          = 3 << 8
	EcpDivShift         = 8
	Pix2clkSrcSelMask   = 3
	Pix2clkSrcCPUClk    = 0
	Pix2clkSrcP2pllClk  = 3
	Pix2clkAlwaysOnb    = 1 << 6
	Pix2clkDacAlwaysOnb = 1 << 7
)

// CRTC_GEN_CNTL bits

const (
	CrtcDblScanEn     = 1 << 0
	CrtcInterlaceEn   = 1 << 1
	CrtcPixWidthMask  = 0xf << 8
	CrtcPixWidthShift = 8
	CrtcCurEn         = 1 << 16
	CrtcCurModeMask   = 7 << 20
	CrtcExtDispEn     = 1 << 24
	CrtcEn            = 1 << 25
	CrtcDispReqEnB    = 1 << 26
)

// CRTC_EXT_CNTL bits

const (
	CrtcVgaXOverscan = 1 << 0
	VgaAtiLinear     = 1 << 3
	XcrtCntEn        = 1 << 6
	CrtcHsyncDis     = 1 << 8
	CrtcVsyncDis     = 1 << 9
	CrtcDisplayDis   = 1 << 10
	CrtcSyncTristat  = 1 << 11
	CrtcCrtOn        = 1 << 15
)

// CRTC2_GEN_CNTL bits

const (
	Crtc2Crt2On        = 1 << 7
	Crtc2PixWidthMask  = 0xf << 8
	Crtc2PixWidthShift = 8
	Crtc2CurEn         = 1 << 16
	Crtc2DispDis       = 1 << 23
	Crtc2En            = 1 << 25
	Crtc2HsyncDis      = 1 << 28
	Crtc2VsyncDis      = 1 << 29
)

// CRTC timing fields

const (
	CrtcHSyncPol = 1 << 23 // negative horizontal sync
	CrtcVSyncPol = 1 << 23 // negative vertical sync
)

// DAC_CNTL bits

const (
	DacRangeCntl = 3
	DacBlanking  = 1 << 2
	Dac8BitEn    = 1 << 8
	DacVgaAdrEn  = 1 << 13
	DacMaskAll   = 0xff << 24
)

// CUR_* bits

const (
	CurLock = 1 << 31
)

// FP_GEN_CNTL bits

const (
	FpFpon               = 1 << 0
	FpTmdsEn             = 1 << 2
	FpEnTmds             = 1 << 7
	FpSelCrtc2           = 1 << 13
	FpCrtcDontShadowVpar = 1 << 16
	FpCrtcDontShadowHend = 1 << 17
	FpCrtcUseShadowVend  = 1 << 18
	FpRmxHvsyncControlEn = 1 << 20
	FpDfpSyncSel         = 1 << 21
	FpCrtcLock8Dot       = 1 << 22
	FpCrtSyncSel         = 1 << 23
	FpUseShadowEn        = 1 << 24
	FpCrtSyncAlt         = 1 << 26
)

// FP_HORZ_STRETCH and FP_VERT_STRETCH fields

const (
	HorzStretchRatioMask = 0xffff
	HorzStretchRatioMax  = 4096
	HorzPanelSizeMask    = 0x1ff << 16
	HorzPanelShift       = 16
	HorzStretchPixrep    = 1 << 24
	HorzStretchEnable    = 1 << 25
	HorzStretchBlend     = 1 << 26
	HorzAutoRatio        = 1 << 27
	HorzFpLoopStretch    = 7 << 28
	HorzAutoRatioInc     = 1 << 31

	VertStretchRatioMask = 0xfff
	VertStretchRatioMax  = 4096
	VertPanelSizeMask    = 0xfff << 12
	VertPanelShift       = 12
	VertStretchLinerep   = 1 << 24
	VertStretchEnable    = 1 << 25
	VertStretchBlend     = 1 << 26
	VertAutoRatioEn      = 1 << 27
	VertStretchReserved  = 0xf1000000
)

// LVDS_GEN_CNTL bits

const (
	LvdsOn         = 1 << 0
	LvdsDisplayDis = 1 << 1
	LvdsPanelType  = 1 << 2
	LvdsEn         = 1 << 7
	LvdsBlon       = 1 << 19
	LvdsSel        = 1 << 23
)

// TMDS_TRANSMITTER_CNTL bits

const (
	TmdsPllEn  = 1 << 0
	TmdsPllRst = 1 << 1
)

// GEN_INT_CNTL and CONFIG_MEMSIZE

const (
	CrtcVblankMask    = 1 << 0
	ConfigMemsizeMask = 0x1f000000
)

// RBBM_STATUS fields

const (
	RbbmFifoCntMask = 0x7f
	GuiActive       = 1 << 31
)

// DP_GUI_MASTER_CNTL fields

const (
	GmcSrcPitchOffsetCntl = 1 << 0     // use SRC_PITCH_OFFSET instead of the default
	GmcDstPitchOffsetCntl = 1 << 1     // use DST_PITCH_OFFSET instead of the default
	GmcBrushNone          = 15 << 4
	GmcDstDatatypeShift   = 8
	GmcDstDatatypeMask    = 0xf << 8
	GmcSrcDatatypeColor   = 3 << 12
	GmcByteMsbToLsb       = 0 << 14
	Rop3Srccopy           = 0x00cc0000
	DpSrcSourceMemory     = 2 << 24
	GmcClrCmpCntlDis      = 1 << 28
	GmcWrMskDis           = 1 << 30
)

// DP_CNTL bits

const (
	DstXLeftToRight = 1 << 0
	DstYTopToBottom = 1 << 1
)

// scissor limits

const (
	DefaultScRightMax  = 0x1fff
	DefaultScBottomMax = 0x1fff << 16
)

// DEFAULT_PITCH_OFFSET fields

const (
	PitchOffsetPitchShift  = 22       // pitch in units of 64 bytes
	PitchOffsetOffsetMask  = 0x3fffff
	PitchOffsetOffsetShift = 10       // offset in units of 1K
)
