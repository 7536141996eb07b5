package radeon

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/c35s/radeonfb/mmio"
)

// Surface is the visible framebuffer of an open display. It is a draw.Image
// backed directly by video memory.
type Surface struct {
	d      *Driver
	ram    mmio.Window
	region Region
	cfg    Configuration
	accel  *Accel // nil if the 2D engine didn't come up
	closed bool

	width, height int
	stride        int
	bytesPerPixel int
	model         pixelModel
}

var _ draw.Image = (*Surface)(nil)

func newSurface(d *Driver, r Region, cfg Configuration, accel *Accel) *Surface {
	return &Surface{
		d:             d,
		ram:           d.io.RAM(),
		region:        r,
		cfg:           cfg,
		accel:         accel,
		width:         cfg.Mode.Width,
		height:        cfg.Mode.Height,
		stride:        cfg.BytesPerLine(),
		bytesPerPixel: BytesPerPixel(cfg.BitsPerPixel),
		model:         pixelModels[cfg.BitsPerPixel],
	}
}

// Width returns the visible width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the visible height in lines.
func (s *Surface) Height() int { return s.height }

// BitsPerPixel returns the color depth.
func (s *Surface) BitsPerPixel() int { return s.cfg.BitsPerPixel }

// Stride returns the length of a scanline in bytes.
func (s *Surface) Stride() int { return s.stride }

// Configuration returns the configuration the display was opened with,
// after adapting it to the attached display.
func (s *Surface) Configuration() Configuration { return s.cfg }

// Region returns the framebuffer's place in video memory.
func (s *Surface) Region() Region { return s.region }

// Accelerated reports whether Copy uses the 2D engine.
func (s *Surface) Accelerated() bool { return s.accel != nil }

func (s *Surface) Bounds() image.Rectangle { return image.Rect(0, 0, s.width, s.height) }

func (s *Surface) ColorModel() color.Model { return &s.model }

func (s *Surface) At(x, y int) color.Color {
	if !image.Pt(x, y).In(s.Bounds()) {
		return pixelValue{0, s.model}
	}

	return pixelValue{s.read(s.offset(x, y)), s.model}
}

func (s *Surface) Set(x, y int, c color.Color) {
	if image.Pt(x, y).In(s.Bounds()) {
		s.write(s.offset(x, y), s.model.convert(c))
	}
}

// Fill paints r with c.
func (s *Surface) Fill(r image.Rectangle, c color.Color) {
	r = r.Intersect(s.Bounds())
	v := s.model.convert(c)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.write(s.offset(x, y), v)
		}
	}
}

// Copy copies the w x h rectangle at (srcX, srcY) to (dstX, dstY). The
// rectangles may overlap and are clipped to the screen. The 2D engine does
// the work when it is available; if it stops responding, the copy is done
// by the CPU.
func (s *Surface) Copy(srcX, srcY, w, h, dstX, dstY int) error {
	if s.closed {
		return ErrNotOpen
	}

	if w <= 0 || h <= 0 {
		return nil
	}

	b := s.Bounds()
	dp := image.Pt(dstX-srcX, dstY-srcY)
	r := image.Rect(srcX, srcY, srcX+w, srcY+h).Intersect(b).Intersect(b.Sub(dp))
	if r.Empty() {
		return nil
	}

	if s.accel != nil {
		err := s.accel.ScreenToScreenCopy(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), r.Min.X+dp.X, r.Min.Y+dp.Y)
		if err == nil {
			err = s.accel.WaitIdle()
		}

		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrDeviceTimeout) {
			return err
		}

		slog.Warn("radeon: 2D engine timed out, copying in software", "err", err)
	}

	s.copySoftware(r, dp)
	return nil
}

func (s *Surface) copySoftware(r image.Rectangle, dp image.Point) {
	n := r.Dx() * s.bytesPerPixel
	buf := make([]byte, n*r.Dy())

	for y := 0; y < r.Dy(); y++ {
		off := s.offset(r.Min.X, r.Min.Y+y)
		for i := 0; i < n; i++ {
			buf[y*n+i] = s.ram.Read8(off + i)
		}
	}

	for y := 0; y < r.Dy(); y++ {
		off := s.offset(r.Min.X+dp.X, r.Min.Y+dp.Y+y)
		for i := 0; i < n; i++ {
			s.ram.Write8(off+i, buf[y*n+i])
		}
	}
}

// Close restores the console. It is the same as calling Close on the
// driver.
func (s *Surface) Close() error {
	if s.closed {
		return ErrNotOpen
	}

	return s.d.Close()
}

func (s *Surface) offset(x, y int) int {
	return s.region.Offset + y*s.stride + x*s.bytesPerPixel
}

func (s *Surface) read(off int) uint32 {
	switch s.bytesPerPixel {
	case 1:
		return uint32(s.ram.Read8(off))
	case 2:
		return uint32(s.ram.Read16(off))
	case 4:
		return s.ram.Read32(off)
	}

	var v uint32
	for j := 0; j < s.bytesPerPixel; j++ {
		v |= uint32(s.ram.Read8(off+j)) << (8 * j)
	}

	return v
}

func (s *Surface) write(off int, v uint32) {
	switch s.bytesPerPixel {
	case 1:
		s.ram.Write8(off, uint8(v))
	case 2:
		s.ram.Write16(off, uint16(v))
	case 4:
		s.ram.Write32(off, v)
	default:
		for j := 0; j < s.bytesPerPixel; j++ {
			s.ram.Write8(off+j, uint8(v>>(8*j)))
		}
	}
}

// pixelModel maps colors to framebuffer pixels. 8 bpp modes use the gray
// ramp Open loads into the palette.
type pixelModel struct {
	gray    bool
	r, g, b channel
}

// channel is one color of a pixelModel.
type channel struct {
	length, offset uint32
}

var pixelModels = map[int]pixelModel{
	8:  {gray: true},
	15: {r: channel{5, 10}, g: channel{5, 5}, b: channel{5, 0}},
	16: {r: channel{5, 11}, g: channel{6, 5}, b: channel{5, 0}},
	24: {r: channel{8, 16}, g: channel{8, 8}, b: channel{8, 0}},
	32: {r: channel{8, 16}, g: channel{8, 8}, b: channel{8, 0}},
}

// pixelValue is pixelModel's color.Color.
type pixelValue struct {
	v     uint32
	model pixelModel
}

func (m *pixelModel) Convert(c color.Color) color.Color {
	return pixelValue{m.convert(c), *m}
}

func (m pixelModel) convert(c color.Color) uint32 {
	if m.gray {
		return uint32(color.GrayModel.Convert(c).(color.Gray).Y)
	}

	r, g, b, _ := c.RGBA()
	return m.r.shift(r) | m.g.shift(g) | m.b.shift(b)
}

func (p pixelValue) RGBA() (r, g, b, a uint32) {
	if p.model.gray {
		y := p.v & 0xff
		y |= y << 8
		return y, y, y, 0xffff
	}

	return p.model.r.unshift(p.v), p.model.g.unshift(p.v), p.model.b.unshift(p.v), 0xffff
}

func (ch channel) shift(v uint32) uint32 {
	mask := uint32(1)<<ch.length - 1
	return (v >> (16 - ch.length) & mask) << ch.offset
}

func (ch channel) unshift(v uint32) uint32 {
	mask := uint32(1)<<ch.length - 1
	return (v >> ch.offset & mask) * 0xffff / mask
}
