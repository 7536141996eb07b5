package bios_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/c35s/radeonfb/bios"
	"github.com/google/go-cmp/cmp"
)

var le = binary.LittleEndian

const (
	hdrAt   = 0x100
	pllAt   = 0x200
	panelAt = 0x300
)

// testROM lays out a ROM with a PLL table and a panel table. Timing blocks
// are written at the given offsets, each with the given resolution.
func testROM(panelX, panelY int, blocks []block) []byte {
	rom := make([]byte, 0x1000)
	rom[0], rom[1], rom[2] = 0x55, 0xaa, 8

	le.PutUint16(rom[0x48:], hdrAt)
	le.PutUint16(rom[hdrAt+0x30:], pllAt)
	le.PutUint16(rom[hdrAt+0x40:], panelAt)

	le.PutUint16(rom[pllAt+0x08:], 16600)
	le.PutUint16(rom[pllAt+0x0e:], 2700)
	le.PutUint16(rom[pllAt+0x10:], 12)
	le.PutUint32(rom[pllAt+0x12:], 12500)
	le.PutUint32(rom[pllAt+0x16:], 35000)

	copy(rom[panelAt+1:], "SHARP LQ150X1\x00garbage")
	le.PutUint16(rom[panelAt+25:], uint16(panelX))
	le.PutUint16(rom[panelAt+27:], uint16(panelY))
	le.PutUint16(rom[panelAt+46:], 12)
	rom[panelAt+48] = 1
	le.PutUint16(rom[panelAt+49:], 58)

	for i, b := range blocks {
		le.PutUint16(rom[panelAt+64+2*i:], uint16(b.at))
		le.PutUint16(rom[b.at:], uint16(b.x))
		le.PutUint16(rom[b.at+2:], uint16(b.y))
		rom[b.at+9] = byte(b.tag)
		le.PutUint16(rom[b.at+17:], 168)
		le.PutUint16(rom[b.at+19:], 128)
		rom[b.at+21] = 131
		rom[b.at+23] = 17
	}

	return rom
}

type block struct {
	at, x, y int
	tag      int // written to the dot clock byte so tests can tell blocks apart
}

func TestParsePLL(t *testing.T) {
	info, err := bios.Parse(testROM(1024, 768, nil))
	if err != nil {
		t.Fatal(err)
	}

	want := &bios.PLLInfo{
		XClk:     16600,
		RefClock: 2700,
		RefDiv:   12,
		MinFreq:  12500,
		MaxFreq:  35000,
	}

	if diff := cmp.Diff(want, info.PLL); diff != "" {
		t.Errorf("PLL info differs: %s", diff)
	}
}

func TestParsePanel(t *testing.T) {
	info, err := bios.Parse(testROM(1024, 768, nil))
	if err != nil {
		t.Fatal(err)
	}

	p := info.Panel
	if p == nil {
		t.Fatal("no panel")
	}

	if p.Name != "SHARP LQ150X1" {
		t.Errorf("panel name %q != %q", p.Name, "SHARP LQ150X1")
	}

	if p.XRes != 1024 || p.YRes != 768 {
		t.Errorf("panel size %dx%d != 1024x768", p.XRes, p.YRes)
	}

	if p.RefDiv != 12 || p.PostDiv != 1 || p.FbkDiv != 58 {
		t.Errorf("panel dividers %d/%d/%d != 12/1/58", p.RefDiv, p.PostDiv, p.FbkDiv)
	}

	if !p.HasDividers() {
		t.Error("panel has no dividers")
	}
}

func TestTimingBlockSelection(t *testing.T) {
	tests := []struct {
		name   string
		blocks []block
		want   int // tag of the selected block, 0 for none
	}{
		{
			name: "first match wins",
			blocks: []block{
				{at: 0x400, x: 800, y: 600, tag: 1},
				{at: 0x420, x: 1024, y: 768, tag: 2},
				{at: 0x440, x: 1024, y: 768, tag: 3},
			},
			want: 2,
		},
		{
			name: "width matches but height doesn't",
			blocks: []block{
				{at: 0x400, x: 1024, y: 600, tag: 1},
				{at: 0x420, x: 1024, y: 768, tag: 2},
			},
			want: 2,
		},
		{
			name: "no match",
			blocks: []block{
				{at: 0x400, x: 640, y: 480, tag: 1},
				{at: 0x420, x: 1280, y: 1024, tag: 2},
			},
		},
		{
			name: "no blocks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := bios.Parse(testROM(1024, 768, tt.blocks))
			if err != nil {
				t.Fatal(err)
			}

			p := info.Panel
			if tt.want == 0 {
				if p.HasManualTiming() {
					t.Fatalf("unexpected timing block: %+v", p.Timing)
				}

				return
			}

			if !p.HasManualTiming() {
				t.Fatal("no timing block")
			}

			if p.Timing.DotClock != tt.want {
				t.Errorf("selected block %d != %d", p.Timing.DotClock, tt.want)
			}
		})
	}
}

func TestTimingBlockLimit(t *testing.T) {
	var blocks []block
	for i := 0; i < 20; i++ {
		blocks = append(blocks, block{at: 0x400 + 0x20*i, x: 640, y: 480, tag: i + 1})
	}

	rom := testROM(1024, 768, blocks)

	// a 21st pointer to a matching block must be ignored
	le.PutUint16(rom[panelAt+64+2*20:], 0x800)
	le.PutUint16(rom[0x800:], 1024)
	le.PutUint16(rom[0x802:], 768)

	info, err := bios.Parse(rom)
	if err != nil {
		t.Fatal(err)
	}

	if info.Panel.HasManualTiming() {
		t.Errorf("block past the limit was selected: %+v", info.Panel.Timing)
	}
}

func TestTimingBlockFields(t *testing.T) {
	info, err := bios.Parse(testROM(1024, 768, []block{{at: 0x400, x: 1024, y: 768, tag: 65}}))
	if err != nil {
		t.Fatal(err)
	}

	want := &bios.PanelTiming{
		XRes:       1024,
		YRes:       768,
		DotClock:   65,
		HTotal:     168,
		HDisplay:   128,
		HSyncStart: 131,
		HSyncWidth: 17,
	}

	if diff := cmp.Diff(want, info.Panel.Timing); diff != "" {
		t.Errorf("timing differs: %s", diff)
	}

	m := info.Panel.Timing.Mode()
	if m.HTotal != 1024+320 || m.HSyncStart != 1024+16 || m.HSyncEnd != 1024+16+136 {
		t.Errorf("horizontal timing %d/%d/%d", m.HSyncStart, m.HSyncEnd, m.HTotal)
	}

	if m.PixelFreq != 650 {
		t.Errorf("pixel frequency %d != %d", m.PixelFreq, 650)
	}
}

func TestTimingVertical(t *testing.T) {
	rom := testROM(1024, 768, []block{{at: 0x400, x: 1024, y: 768, tag: 65}})
	rom[0x400+24] = 38
	rom[0x400+26] = 2
	rom[0x400+28] = 5

	info, err := bios.Parse(rom)
	if err != nil {
		t.Fatal(err)
	}

	tm := info.Panel.Timing
	if tm.VBlank() != 36 || tm.VOverPlus() != 3 {
		t.Errorf("blank %d, front porch %d; want 36, 3", tm.VBlank(), tm.VOverPlus())
	}

	if w := tm.VSyncWidth(); w != 0 {
		t.Errorf("sync width %d from a one-byte field", w)
	}

	m := tm.Mode()
	if m.VTotal != 768+36 || m.VSyncStart != 768+3 || m.VSyncEnd != m.VSyncStart {
		t.Errorf("vertical timing %d/%d/%d", m.VSyncStart, m.VSyncEnd, m.VTotal)
	}
}

func TestParseNoHeader(t *testing.T) {
	info, err := bios.Parse(make([]byte, 0x100))
	if err != nil {
		t.Fatal(err)
	}

	if info.PLL != nil || info.Panel != nil {
		t.Errorf("tables in an empty ROM: %+v", info)
	}
}

func TestParseTruncated(t *testing.T) {
	rom := testROM(1024, 768, nil)[:pllAt+0x10]
	if _, err := bios.Parse(rom); !errors.Is(err, bios.ErrTruncated) {
		t.Errorf("error isn't ErrTruncated: %v", err)
	}

	if _, err := bios.Parse(make([]byte, 0x20)); !errors.Is(err, bios.ErrTruncated) {
		t.Errorf("short ROM error isn't ErrTruncated: %v", err)
	}
}

func TestVerify(t *testing.T) {
	if err := bios.Verify(testROM(1024, 768, nil)); err != nil {
		t.Error(err)
	}

	if err := bios.Verify([]byte{0xaa, 0x55, 0}); !errors.Is(err, bios.ErrSignature) {
		t.Errorf("error isn't ErrSignature: %v", err)
	}

	if err := bios.Verify([]byte{0x55}); !errors.Is(err, bios.ErrTruncated) {
		t.Errorf("error isn't ErrTruncated: %v", err)
	}
}

func TestScan(t *testing.T) {
	legacy := make([]byte, 0x30000)

	// a non-ATI option ROM comes first
	legacy[0], legacy[1], legacy[2] = 0x55, 0xaa, 64

	at := 0xc000
	legacy[at], legacy[at+1], legacy[at+2] = 0x55, 0xaa, 96
	copy(legacy[at+0x30:], "761295520")

	rom, addr, err := bios.Scan(legacy)
	if err != nil {
		t.Fatal(err)
	}

	if addr != bios.LegacyBase+at {
		t.Errorf("ROM address %#x != %#x", addr, bios.LegacyBase+at)
	}

	if len(rom) != 96*512 {
		t.Errorf("ROM size %d != %d", len(rom), 96*512)
	}
}

func TestScanSignatureOutsideWindow(t *testing.T) {
	legacy := make([]byte, 0x10000)
	legacy[0], legacy[1], legacy[2] = 0x55, 0xaa, 64
	copy(legacy[200:], "761295520")

	if _, _, err := bios.Scan(legacy); !errors.Is(err, bios.ErrNotFound) {
		t.Errorf("error isn't ErrNotFound: %v", err)
	}
}
