// Package memory implements the region-based heap the interpreter
// allocates composite values from: pointer-bump allocation within a
// region, bulk reclamation on drop, and opaque handles that are only
// valid for the heap that issued them.
package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultRegionSize rounds to the host page size, following the
// teacher's platform-aware allocation style (its JIT executable-memory
// allocator rounds requests up to syscall.Getpagesize()); the region
// allocator borrows that one convention without needing the rest of
// the JIT's mmap machinery.
var DefaultRegionSize = pageAlignedDefault()

func pageAlignedDefault() int {
	const want = 64 * 1024
	page := unix.Getpagesize()
	if page <= 0 {
		return want
	}
	return ((want + page - 1) / page) * page
}

// marker records one allocation's span within a region, used only for
// diagnostics (the allocator never frees individual spans).
type marker struct {
	offset int
	size   int
}

// Region is a contiguous byte buffer allocated by pointer-bump.
// Individual deallocation is a no-op; the whole region is reclaimed
// when its owning Heap drops it.
type Region struct {
	buf     []byte
	offset  int
	markers []marker
}

func newRegion(size int) *Region {
	if size <= 0 {
		size = DefaultRegionSize
	}
	return &Region{buf: make([]byte, size)}
}

// Remaining reports how many bytes are left before the region must be
// retired.
func (r *Region) Remaining() int {
	return len(r.buf) - r.offset
}

// isPowerOfTwo reports whether n is a power of two; the bump-pointer
// rounding trick in alloc is only correct for power-of-two alignments.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// alloc bump-allocates size bytes aligned to align, returning the
// region-relative offset, or false if the region cannot satisfy the
// request.
func (r *Region) alloc(size, align int) (int, bool) {
	if align <= 0 {
		align = 1
	}
	aligned := (r.offset + align - 1) &^ (align - 1)
	if aligned+size > len(r.buf) {
		return 0, false
	}
	r.markers = append(r.markers, marker{offset: aligned, size: size})
	r.offset = aligned + size
	return aligned, true
}

// Allocator is the allocation trait the interpreter and task runtime
// program against, so a heap can be swapped out (e.g. per-task) without
// either caller depending on *Heap directly.
type Allocator interface {
	Alloc(size, align int) (HeapHandle, error)
	Bytes(h HeapHandle) []byte
}

// HeapHandle is an opaque integer. A heap never reuses a handle while
// its issuing region is live; an explicit free list (none is used by
// this allocator — deallocation is per-region only) would be the only
// source of index reuse.
type HeapHandle uint64

type location struct {
	region *Region
	offset int
	size   int
}

// Heap owns a current region plus a pool of regions retired once they
// could no longer satisfy an allocation. Handles issued by a Heap are
// valid until the Heap itself is dropped and are not portable to
// another Heap.
type Heap struct {
	current   *Region
	spent     []*Region
	handles   map[HeapHandle]location
	nextHandle uint64
	regionSize int
}

// NewHeap creates a heap whose regions are sized regionSize bytes (0
// selects DefaultRegionSize).
func NewHeap(regionSize int) *Heap {
	if regionSize <= 0 {
		regionSize = DefaultRegionSize
	}
	return &Heap{
		current:    newRegion(regionSize),
		handles:    make(map[HeapHandle]location),
		regionSize: regionSize,
	}
}

// ErrOutOfMemory is raised when even a fresh region cannot satisfy a
// single allocation request. A request larger than the region size is
// not such a case: Alloc gives it a dedicated region of its own size.
var ErrOutOfMemory = fmt.Errorf("out of memory")

// ErrAlignment is raised when an allocation request's alignment is not
// a power of two; the region's bump-pointer rounding is only correct
// for power-of-two alignments, so anything else is rejected up front
// rather than silently mis-aligning the allocation.
var ErrAlignment = fmt.Errorf("alignment error")

// Alloc bump-allocates size bytes (aligned to align) in the current
// region, retiring and replacing the region first if it cannot satisfy
// the request.
func (h *Heap) Alloc(size, align int) (HeapHandle, error) {
	if align > 0 && !isPowerOfTwo(align) {
		return 0, fmt.Errorf("%w: alignment %d is not a power of two", ErrAlignment, align)
	}
	if off, ok := h.current.alloc(size, align); ok {
		return h.issue(h.current, off, size), nil
	}
	h.spent = append(h.spent, h.current)
	next := h.regionSize
	if size > next {
		next = size
	}
	h.current = newRegion(next)
	off, ok := h.current.alloc(size, align)
	if !ok {
		return 0, fmt.Errorf("%w: requested %d bytes", ErrOutOfMemory, size)
	}
	return h.issue(h.current, off, size), nil
}

func (h *Heap) issue(r *Region, offset, size int) HeapHandle {
	h.nextHandle++
	handle := HeapHandle(h.nextHandle)
	h.handles[handle] = location{region: r, offset: offset, size: size}
	return handle
}

// Bytes returns the byte span a handle refers to. Panics if the handle
// was not issued by this heap — that is a programming error, not a
// runtime-recoverable condition, matching the spec's invariant that a
// handle is only meaningful relative to its issuing heap.
func (h *Heap) Bytes(handle HeapHandle) []byte {
	loc, ok := h.handles[handle]
	if !ok {
		panic(fmt.Sprintf("memory: handle %d not issued by this heap", handle))
	}
	return loc.region.buf[loc.offset : loc.offset+loc.size]
}

// RegionCount reports the number of regions currently owned (the
// current region plus any retired to the spent pool); useful for tests
// and diagnostics, not part of the allocation hot path.
func (h *Heap) RegionCount() int {
	return len(h.spent) + 1
}
