// radeonfb sets a display mode on an ATI Radeon, draws a test pattern and
// puts the console back when a key is pressed. With -dump it runs against a
// simulated copy of a captured device instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"

	"github.com/c35s/radeonfb/radeon"
	"github.com/fogleman/gg"
	"golang.org/x/term"
)

type options struct {
	dev     string
	dump    string
	mode    string
	bpp     int
	arch    string
	pattern string
	cursor  bool
	png     string

	strictPLL         bool
	trustBIOSDividers bool
}

func main() {
	var o options

	flag.StringVar(&o.dev, "dev", "", "use the PCI function at this sysfs path (default: the first Radeon)")
	flag.StringVar(&o.dump, "dump", "", "simulate the device captured in this dump file or URL")
	flag.StringVar(&o.mode, "mode", "1024x768@60", "set this VESA mode")
	flag.IntVar(&o.bpp, "bpp", 16, "set the pixel depth: 8, 15, 16, 24 or 32")
	flag.StringVar(&o.arch, "arch", "", "override the chip family, e.g. R200")
	flag.StringVar(&o.pattern, "pattern", "card", "draw a pattern: card, bars, ramp or none")
	flag.BoolVar(&o.cursor, "cursor", true, "show the hardware cursor")
	flag.StringVar(&o.png, "png", "", "save the framebuffer to a PNG file before restoring")
	flag.BoolVar(&o.strictPLL, "strict-pll", false, "fail if the PLL never acknowledges an update")
	flag.BoolVar(&o.trustBIOSDividers, "trust-bios-dividers", false, "use the ROM's PLL dividers for the panel's native mode")
	verbose := flag.Bool("v", false, "log debug messages")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o); err != nil {
		slog.Error("radeonfb: failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) (err error) {
	mode, err := radeon.ParseMode(o.mode)
	if err != nil {
		return err
	}

	dev, err := openDevice(ctx, o)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, dev.close())
	}()

	cfg := dev.cfg
	if o.arch != "" {
		cfg.Arch = o.arch
	}

	cfg.StrictPLLUpdate = o.strictPLL
	cfg.TrustBIOSDividers = o.trustBIOSDividers

	d, err := radeon.New(cfg)
	if err != nil {
		return err
	}

	slog.Info("radeonfb: found device",
		"arch", d.Arch(),
		"monitor", d.Monitor(),
		"mem", fmt.Sprintf("%dMiB", d.MemSize()>>20))

	s, err := d.Open(radeon.Configuration{Mode: mode, BitsPerPixel: o.bpp})
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, s.Close())
	}()

	if err := drawPattern(s, o.pattern, d.Arch()); err != nil {
		return err
	}

	if o.cursor {
		c := d.HardwareCursor()
		if err := c.SetImage(arrow()); err != nil {
			return err
		}

		c.SetPosition(s.Width()/2, s.Height()/2)
		c.SetVisible(true)
	}

	if o.png != "" {
		if err := gg.SavePNG(o.png, s); err != nil {
			return err
		}

		slog.Info("radeonfb: saved framebuffer", "path", o.png)
	}

	if dev.interactive {
		return waitKey(ctx)
	}

	return nil
}

// drawPattern renders a test pattern with gg and copies it to the screen.
func drawPattern(s *radeon.Surface, name string, arch radeon.Arch) error {
	w, h := s.Width(), s.Height()
	dc := gg.NewContext(w, h)

	switch name {
	case "none":
		return nil

	case "bars":
		drawBars(dc, 0, float64(h))

	case "ramp":
		for x := 0; x < w; x++ {
			v := float64(x) / float64(w-1)
			dc.SetRGB(v, v, v)
			dc.DrawRectangle(float64(x), 0, 1, float64(h))
			dc.Fill()
		}

	case "card":
		drawCard(dc, fmt.Sprintf("%v on %v", s.Configuration(), arch))

	default:
		return fmt.Errorf("radeonfb: unknown pattern %q", name)
	}

	draw.Draw(s, s.Bounds(), dc.Image(), image.Point{}, draw.Src)

	if name == "card" {
		// the corner markers are blitted so a broken 2D engine shows up
		side := min(w, h) / 8
		for _, p := range []image.Point{{w - side, 0}, {0, h - side}, {w - side, h - side}} {
			if err := s.Copy(0, 0, side, side, p.X, p.Y); err != nil {
				return err
			}
		}
	}

	return nil
}

func drawCard(dc *gg.Context, label string) {
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.SetRGB(0.25, 0.25, 0.25)
	dc.Clear()

	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(1)
	for x := 0.5; x < w; x += 64 {
		dc.DrawLine(x, 0, x, h)
	}

	for y := 0.5; y < h; y += 64 {
		dc.DrawLine(0, y, w, y)
	}

	dc.Stroke()

	drawBars(dc, h/3, h/3)

	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(3)
	dc.DrawCircle(w/2, h/2, min(w, h)*0.4)
	dc.Stroke()

	dc.DrawRectangle(1.5, 1.5, w-3, h-3)
	dc.Stroke()

	// corner marker, copied to the other corners once on screen
	side := float64(int(min(w, h)) / 8)
	dc.SetRGB(1, 1, 0)
	dc.DrawRectangle(0, 0, side, side)
	dc.Fill()
	dc.SetRGB(0, 0, 0)
	dc.DrawLine(0, 0, side, side)
	dc.DrawLine(side, 0, 0, side)
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(label, w/2, h/2, 0.5, 0.5)
}

var barColors = [...][3]float64{
	{1, 1, 1}, {1, 1, 0}, {0, 1, 1}, {0, 1, 0},
	{1, 0, 1}, {1, 0, 0}, {0, 0, 1}, {0, 0, 0},
}

func drawBars(dc *gg.Context, y, h float64) {
	bw := float64(dc.Width()) / float64(len(barColors))
	for i, c := range barColors {
		dc.SetRGB(c[0], c[1], c[2])
		dc.DrawRectangle(float64(i)*bw, y, bw, h)
		dc.Fill()
	}
}

// arrow draws a pointer with its tip at the hotspot.
func arrow() *radeon.CursorImage {
	dc := gg.NewContext(radeon.CursorSize, radeon.CursorSize)

	dc.MoveTo(1, 1)
	dc.LineTo(1, 22)
	dc.LineTo(6, 17)
	dc.LineTo(10, 26)
	dc.LineTo(13, 25)
	dc.LineTo(9, 16)
	dc.LineTo(16, 16)
	dc.ClosePath()

	dc.SetRGB(1, 1, 1)
	dc.FillPreserve()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.Stroke()

	return &radeon.CursorImage{Image: dc.Image(), Hotspot: image.Pt(1, 1)}
}

// waitKey returns when a key is pressed or ctx is done.
func waitKey(ctx context.Context) error {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}

		defer term.Restore(fd, old)
	}

	fmt.Fprint(os.Stderr, "press any key to restore the console\r\n")

	key := make(chan error, 1)
	go func() {
		var b [1]byte
		_, err := os.Stdin.Read(b[:])
		key <- err
	}()

	select {
	case err := <-key:
		if errors.Is(err, io.EOF) {
			return nil
		}

		return err

	case <-ctx.Done():
		return nil
	}
}

// readURL reads a file or fetches an http(s) URL.
func readURL(s string) (body []byte, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("radeonfb: read URL %s: %w", s, err)
		}
	}()

	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "", "file":
		return os.ReadFile(u.Path)

	case "http", "https":
		res, err := http.Get(u.String())
		if err != nil {
			return nil, err
		}

		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("response status %d != %d", res.StatusCode, http.StatusOK)
		}

		return io.ReadAll(res.Body)

	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
