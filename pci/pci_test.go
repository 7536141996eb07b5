package pci_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/c35s/radeonfb/pci"
	"github.com/c35s/radeonfb/radeon"
	"github.com/google/go-cmp/cmp"
)

type fn struct {
	addr                  string
	vendor, device, class string
}

func fakeTree(t *testing.T, fns ...fn) string {
	t.Helper()

	root := t.TempDir()
	for _, f := range fns {
		dir := filepath.Join(root, f.addr)
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}

		for name, v := range map[string]string{"vendor": f.vendor, "device": f.device, "class": f.class} {
			if v == "" {
				continue
			}

			if err := os.WriteFile(filepath.Join(dir, name), []byte(v+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	return root
}

func TestScan(t *testing.T) {
	root := fakeTree(t,
		fn{"0000:00:00.0", "0x8086", "0x2570", "0x060000"}, // host bridge
		fn{"0000:02:00.0", "0x1002", "0x4966", "0x030000"}, // RV250
		fn{"0000:01:00.0", "0x1002", "0x514c", "0x030000"}, // R200
		fn{"0000:01:00.1", "0x1002", "0x516c", "0x038000"}, // secondary head, unknown ID
		fn{"0000:03:00.0", "0x1002", "0x4378", "0x040300"}, // ATI audio
	)

	devs, err := pci.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	want := []pci.Device{
		{
			Addr:     "0000:01:00.0",
			Path:     filepath.Join(root, "0000:01:00.0"),
			DeviceID: 0x514c,
			Class:    0x030000,
			Arch:     radeon.R200,
			Model:    "Radeon 8500 QL",
		},
		{
			Addr:     "0000:02:00.0",
			Path:     filepath.Join(root, "0000:02:00.0"),
			DeviceID: 0x4966,
			Class:    0x030000,
			Arch:     radeon.RV250,
			Model:    "Radeon 9000 If",
		},
	}

	if diff := cmp.Diff(want, devs); diff != "" {
		t.Errorf("devices mismatch (-want +got):\n%s", diff)
	}

	first, err := pci.First(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if first.Addr != "0000:01:00.0" {
		t.Errorf("first device: got %s", first.Addr)
	}
}

func TestScanErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		if _, err := pci.Scan(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("scanned a missing directory")
		}
	})

	t.Run("garbage attribute", func(t *testing.T) {
		root := fakeTree(t, fn{"0000:01:00.0", "0x1002", "boom", "0x030000"})
		if _, err := pci.Scan(context.Background(), root); err == nil {
			t.Error("parsed a garbage device ID")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		root := fakeTree(t, fn{"0000:01:00.0", "0x1002", "0x514c", "0x030000"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := pci.Scan(ctx, root); !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		root := fakeTree(t, fn{"0000:00:00.0", "0x8086", "0x2570", "0x060000"})
		if _, err := pci.First(context.Background(), root); !errors.Is(err, pci.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestOpen(t *testing.T) {
	root := fakeTree(t,
		fn{"0000:01:00.0", "0x1002", "0x4c66", "0x030000"},
		fn{"0000:00:1f.0", "0x8086", "0x24cc", "0x060100"},
	)

	d, err := pci.Open(filepath.Join(root, "0000:01:00.0"))
	if err != nil {
		t.Fatal(err)
	}

	if d.Arch != radeon.M9 || !d.Arch.IsMobility() {
		t.Errorf("arch: got %v, want M9", d.Arch)
	}

	if _, err := pci.Open(filepath.Join(root, "0000:00:1f.0")); !errors.Is(err, pci.ErrNotFound) {
		t.Errorf("opened a non-Radeon: %v", err)
	}
}

func TestLookup(t *testing.T) {
	for id, want := range map[uint16]radeon.Arch{
		0x5144: radeon.R100,
		0x5159: radeon.RV100,
		0x4c59: radeon.M6,
		0x5157: radeon.RV200,
		0x4c57: radeon.M7,
		0x514c: radeon.R200,
		0x4966: radeon.RV250,
		0x4c66: radeon.M9,
		0x4e44: radeon.R300,
	} {
		got, _, ok := pci.Lookup(id)
		if !ok || got != want {
			t.Errorf("%#04x: got %v, %v; want %v", id, got, ok, want)
		}
	}

	if _, _, ok := pci.Lookup(0x7100); ok {
		t.Error("looked up an R520")
	}
}

func TestReadROMDisabled(t *testing.T) {
	root := fakeTree(t, fn{"0000:01:00.0", "0x1002", "0x514c", "0x030000"})

	d, err := pci.Open(filepath.Join(root, "0000:01:00.0"))
	if err != nil {
		t.Fatal(err)
	}

	// a directory where the attribute should be can't be enabled
	if err := os.Mkdir(filepath.Join(d.Path, "rom"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := d.ReadROM(); !errors.Is(err, pci.ErrROM) {
		t.Errorf("got %v, want ErrROM", err)
	}
}
