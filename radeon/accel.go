package radeon

import (
	"fmt"
	"time"

	"github.com/c35s/radeonfb/reg"
)

// FIFOTimeout bounds every wait for command FIFO space.
const FIFOTimeout = 500 * time.Millisecond

// Accel drives the 2D engine for screen to screen copies.
type Accel struct {
	io  *VGAIO
	gmc uint32
}

func newAccel(io *VGAIO) *Accel {
	return &Accel{io: io}
}

// init points the engine at the framebuffer region and opens the scissor.
func (a *Accel) init(r Region, cfg Configuration) error {
	format, err := PixelFormat(cfg.BitsPerPixel)
	if err != nil {
		return err
	}

	a.gmc = format<<reg.GmcDstDatatypeShift | reg.GmcClrCmpCntlDis

	po := uint32(cfg.BytesPerLine()/64)<<reg.PitchOffsetPitchShift |
		uint32(r.Offset>>reg.PitchOffsetOffsetShift)&reg.PitchOffsetOffsetMask

	if err := a.WaitForFIFO(7); err != nil {
		return err
	}

	a.io.SetReg32(reg.DefaultPitchOffset, po)
	a.io.SetReg32(reg.DstPitchOffset, po)
	a.io.SetReg32(reg.SrcPitchOffset, po)
	a.io.SetReg32(reg.DefaultScBottomRight, reg.DefaultScRightMax|reg.DefaultScBottomMax)
	a.io.SetReg32(reg.ScTopLeft, 0)
	a.io.SetReg32(reg.DpDatatype, format)
	a.io.SetReg32(reg.DpWriteMsk, 0xffffffff)

	return nil
}

// WaitForFIFO polls until at least n command FIFO entries are free. It fails
// with ErrDeviceTimeout after FIFOTimeout.
func (a *Accel) WaitForFIFO(n int) error {
	deadline := time.Now().Add(FIFOTimeout)
	for {
		if free := int(a.io.Reg32(reg.RbbmStatus) & reg.RbbmFifoCntMask); free >= n {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d FIFO entries not free after %v", ErrDeviceTimeout, n, FIFOTimeout)
		}
	}
}

// WaitIdle polls until the engine has finished all queued work. It fails
// with ErrDeviceTimeout after FIFOTimeout.
func (a *Accel) WaitIdle() error {
	if err := a.WaitForFIFO(64); err != nil {
		return err
	}

	deadline := time.Now().Add(FIFOTimeout)
	for a.io.Reg32(reg.RbbmStatus)&reg.GuiActive != 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: engine busy after %v", ErrDeviceTimeout, FIFOTimeout)
		}
	}

	return nil
}

// ScreenToScreenCopy copies a w x h rectangle within the framebuffer. The
// engine walks the rectangle in whichever direction keeps overlapping copies
// intact. The final write to DST_HEIGHT_WIDTH starts the blit.
func (a *Accel) ScreenToScreenCopy(srcX, srcY, w, h, dstX, dstY int) error {
	if w <= 0 || h <= 0 {
		return nil
	}

	var dir uint32
	if srcX >= dstX {
		dir |= reg.DstXLeftToRight
	} else {
		srcX += w - 1
		dstX += w - 1
	}

	if srcY >= dstY {
		dir |= reg.DstYTopToBottom
	} else {
		srcY += h - 1
		dstY += h - 1
	}

	if err := a.WaitForFIFO(4); err != nil {
		return err
	}

	a.io.SetReg32(reg.DpGuiMasterCntl, a.gmc|reg.GmcBrushNone|reg.GmcSrcDatatypeColor|
		reg.Rop3Srccopy|reg.DpSrcSourceMemory)
	a.io.SetReg32(reg.DpWriteMsk, 0xffffffff)
	a.io.SetReg32(reg.DpCntl, dir)
	a.io.SetReg32(reg.SrcYX, yx(srcY, srcX))

	if err := a.WaitForFIFO(2); err != nil {
		return err
	}

	a.io.SetReg32(reg.DstYX, yx(dstY, dstX))
	a.io.SetReg32(reg.DstHeightWidth, yx(h, w))

	return nil
}

func yx(y, x int) uint32 {
	return uint32(y)&0xffff<<16 | uint32(x)&0xffff
}
