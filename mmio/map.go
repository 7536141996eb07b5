//go:build linux

package mmio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var ErrMap = errors.New("mmio: map failed")

// Mapping is a Window over a shared mapping of a file, usually a PCI BAR
// resource file in sysfs or /dev/mem.
type Mapping struct {
	Mem
	f *os.File
}

// Map maps size bytes of the file at path, starting at off. If size is 0 the
// rest of the file is mapped. The offset must be page aligned.
func Map(path string, off int64, size int) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMap, err)
	}

	if size == 0 {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %w", ErrMap, err)
		}

		size = int(fi.Size() - off)
	}

	if size <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s: nothing to map at offset %#x", ErrMap, path, off)
	}

	mem, err := unix.Mmap(int(f.Fd()), off, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)

	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrMap, path, err)
	}

	return &Mapping{Mem: mem, f: f}, nil
}

// Close unmaps the window and closes the underlying file.
func (m *Mapping) Close() error {
	err := errors.Join(unix.Munmap(m.Mem), m.f.Close())
	m.Mem = nil
	return err
}
