package radeon_test

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/c35s/radeonfb/radeon"
	"github.com/c35s/radeonfb/reg"
	"github.com/c35s/radeonfb/sim"
)

func TestSurfaceColors(t *testing.T) {
	for _, tt := range []struct {
		bpp  int
		c    color.Color
		want color.RGBA64
	}{
		{8, color.White, color.RGBA64{0xffff, 0xffff, 0xffff, 0xffff}},
		{8, color.Black, color.RGBA64{0, 0, 0, 0xffff}},
		{15, color.RGBA{R: 255, A: 255}, color.RGBA64{0xffff, 0, 0, 0xffff}},
		{16, color.RGBA{G: 255, A: 255}, color.RGBA64{0, 0xffff, 0, 0xffff}},
		{24, color.RGBA{B: 255, A: 255}, color.RGBA64{0, 0, 0xffff, 0xffff}},
		{32, color.RGBA{R: 0x80, G: 0x40, B: 0x20, A: 255}, color.RGBA64{0x8080, 0x4040, 0x2020, 0xffff}},
	} {
		d, _ := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
		s := openMode(t, d, "640x480@60", tt.bpp)

		s.Set(10, 20, tt.c)

		r, g, b, a := s.At(10, 20).RGBA()
		got := color.RGBA64{uint16(r), uint16(g), uint16(b), uint16(a)}
		if got != tt.want {
			t.Errorf("%d bpp: got %v, want %v", tt.bpp, got, tt.want)
		}

		if r, _, _, _ := s.At(11, 20).RGBA(); r != 0 {
			t.Errorf("%d bpp: neighbor pixel isn't clear", tt.bpp)
		}

		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSurfaceLayout(t *testing.T) {
	d, dev := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
	s := openMode(t, d, "800x600@60", 16)

	s.Set(3, 2, color.White)

	if got := dev.RAM().Read16(s.Region().Offset + 2*s.Stride() + 3*2); got != 0xffff {
		t.Errorf("pixel in video memory: got %#04x, want 0xffff", got)
	}

	// draw.Draw works on the surface directly
	draw.Draw(s, image.Rect(0, 0, 4, 4), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	if got := dev.RAM().Read16(s.Region().Offset + s.Stride() + 2); got != 0xf800 {
		t.Errorf("drawn pixel: got %#04x, want 0xf800", got)
	}
}

func TestSurfaceCopy(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}

	t.Run("accelerated", func(t *testing.T) {
		d, dev := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
		s := openMode(t, d, "1024x768@60", 16)

		if !s.Accelerated() {
			t.Fatal("2D engine not in use")
		}

		s.Fill(image.Rect(0, 0, 8, 8), red)
		dev.ResetTrace()

		if err := s.Copy(0, 0, 8, 8, 100, 50); err != nil {
			t.Fatal(err)
		}

		if dev.Blits() != 1 {
			t.Errorf("got %d blits, want 1", dev.Blits())
		}

		if r, _, _, _ := s.At(107, 57).RGBA(); r != 0xffff {
			t.Error("rectangle not copied")
		}

		if r, _, _, _ := s.At(108, 58).RGBA(); r != 0 {
			t.Error("copied past the rectangle")
		}

		trace := dev.Trace()
		if len(trace) == 0 || trace[len(trace)-1].Reg != reg.DstHeightWidth {
			t.Errorf("DST_HEIGHT_WIDTH isn't the last write: %+v", trace)
		}
	})

	t.Run("overlapping", func(t *testing.T) {
		d, dev := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
		s := openMode(t, d, "640x480@60", 8)

		for x := 0; x < 16; x++ {
			s.Set(x, 0, color.Gray{Y: uint8(16 * x)})
		}

		dev.ResetTrace()

		// shift right by 4 within the same line
		if err := s.Copy(0, 0, 16, 1, 4, 0); err != nil {
			t.Fatal(err)
		}

		for x := 0; x < 16; x++ {
			r, _, _, _ := s.At(x+4, 0).RGBA()
			if want := uint32(16*x) * 0x101; r != want {
				t.Errorf("pixel %d: got %#x, want %#x", x+4, r, want)
			}
		}

		var dir uint32
		for _, w := range dev.Trace() {
			if !w.PLL && w.Reg == reg.DpCntl {
				dir = w.Value
			}
		}

		if dir&reg.DstXLeftToRight != 0 {
			t.Errorf("DP_CNTL %#x walks left to right into its own source", dir)
		}
	})

	t.Run("clipped", func(t *testing.T) {
		d, _ := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
		s := openMode(t, d, "640x480@60", 32)

		s.Fill(image.Rect(630, 470, 640, 480), red)

		if err := s.Copy(630, 470, 50, 50, 0, 0); err != nil {
			t.Fatal(err)
		}

		if r, _, _, _ := s.At(9, 9).RGBA(); r != 0xffff {
			t.Error("visible part not copied")
		}
	})

	t.Run("negative size", func(t *testing.T) {
		d, dev := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
		s := openMode(t, d, "640x480@60", 16)

		s.Fill(image.Rect(5, 5, 10, 10), red)
		dev.ResetTrace()

		if err := s.Copy(10, 10, -5, -5, 100, 100); err != nil {
			t.Fatal(err)
		}

		if r, _, _, _ := s.At(95, 95).RGBA(); r != 0 {
			t.Error("copied a rectangle from a negative size")
		}

		if dev.Blits() != 0 {
			t.Errorf("got %d blits, want 0", dev.Blits())
		}
	})

	t.Run("stalled engine", func(t *testing.T) {
		start := time.Now()
		d, dev := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{FIFOStalled: true})
		s := openMode(t, d, "640x480@60", 16)

		if elapsed := time.Since(start); elapsed < radeon.FIFOTimeout {
			t.Errorf("gave up on the FIFO after %v", elapsed)
		}

		if s.Accelerated() {
			t.Error("2D engine in use")
		}

		s.Fill(image.Rect(0, 0, 2, 2), red)

		if err := s.Copy(0, 0, 2, 2, 10, 10); err != nil {
			t.Fatal(err)
		}

		if r, _, _, _ := s.At(11, 11).RGBA(); r != 0xffff {
			t.Error("software copy failed")
		}

		if dev.Blits() != 0 {
			t.Errorf("got %d blits on a stalled engine", dev.Blits())
		}
	})
}

func TestWaitForFIFO(t *testing.T) {
	d, _ := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{FIFOStalled: true})

	start := time.Now()
	err := d.Accel().WaitForFIFO(1)

	if !errors.Is(err, radeon.ErrDeviceTimeout) {
		t.Errorf("got %v, want ErrDeviceTimeout", err)
	}

	elapsed := time.Since(start)
	if elapsed < radeon.FIFOTimeout {
		t.Errorf("timed out after %v, want at least %v", elapsed, radeon.FIFOTimeout)
	}

	if elapsed > 2*radeon.FIFOTimeout {
		t.Errorf("timed out after %v, want less than %v", elapsed, 2*radeon.FIFOTimeout)
	}

	d2, _ := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
	if err := d2.Accel().WaitForFIFO(64); err != nil {
		t.Errorf("idle engine: %v", err)
	}
}

func TestSurfaceClosed(t *testing.T) {
	d, _ := newDriver(t, radeon.Config{Arch: "R200"}, sim.Options{})
	s := openMode(t, d, "640x480@60", 8)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.Copy(0, 0, 1, 1, 1, 1); !errors.Is(err, radeon.ErrNotOpen) {
		t.Errorf("copy on a closed surface: got %v, want ErrNotOpen", err)
	}
}
