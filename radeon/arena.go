package radeon

import "fmt"

// LegacySize is the low region of video memory left to VGA text mode and
// never handed out.
const LegacySize = 128 << 10

// Region is a claimed range of video memory.
type Region struct {
	Offset int
	Size   int
}

// End returns the offset just past the region.
func (r Region) End() int { return r.Offset + r.Size }

// Arena is a bump allocator over video memory. Reservations are permanent;
// claims are only given back all at once by Release.
type Arena struct {
	size int
	mark int // end of the permanent reservations
	next int
}

// NewArena returns an arena over size bytes with the legacy region already
// reserved.
func NewArena(size int) (*Arena, error) {
	if size < LegacySize {
		return nil, fmt.Errorf("%w: %d bytes of video memory", ErrResourceUnavailable, size)
	}

	return &Arena{size: size, mark: LegacySize, next: LegacySize}, nil
}

// Size returns the size of the arena.
func (a *Arena) Size() int { return a.size }

// Free returns the number of unclaimed bytes.
func (a *Arena) Free() int { return a.size - a.next }

// Reserve permanently claims size bytes aligned to align. It must be called
// before any Claim.
func (a *Arena) Reserve(size, align int) (Region, error) {
	if a.next != a.mark {
		panic("radeon: reserve with outstanding claims")
	}

	r, err := a.Claim(size, align)
	if err != nil {
		return Region{}, err
	}

	a.mark = a.next
	return r, nil
}

// Claim hands out size bytes aligned to align, which must be a power of two.
func (a *Arena) Claim(size, align int) (Region, error) {
	if align <= 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("radeon: bad alignment %d", align))
	}

	off := (a.next + align - 1) &^ (align - 1)
	if size < 0 || off+size > a.size {
		return Region{}, fmt.Errorf("%w: %d bytes aligned to %d, %d free", ErrResourceUnavailable,
			size, align, a.Free())
	}

	a.next = off + size
	return Region{Offset: off, Size: size}, nil
}

// Release gives back every claim made since the last reservation.
func (a *Arena) Release() {
	a.next = a.mark
}
