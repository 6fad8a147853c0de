package workspace

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	perrors "paramd/errors"
)

// atomicU32 and atomicU64 perform aligned atomic loads/stores directly on
// the backing buffer, the Go-native equivalent of the seqlock discipline
// described in SPEC_FULL.md §9: every cross-process-visible field is
// published with a release store and observed with an acquire load.
func atomicLoadU32(buf []byte, off uint32) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&buf[off])))
}

func atomicStoreU32(buf []byte, off uint32, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&buf[off])), v)
}

func atomicLoadU64(buf []byte, off uint32) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&buf[off])))
}

func atomicStoreU64(buf []byte, off uint32, v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&buf[off])), v)
}

// arena is the bump-pointer allocator over the node/value region of a
// workspace buffer. Allocation is always 8-byte aligned so every record
// field lands on a naturally aligned address for atomic access.
type arena struct {
	buf      []byte
	capacity uint32
}

func newArena(buf []byte, capacity uint32) *arena {
	return &arena{buf: buf, capacity: capacity}
}

// endCursor returns the current allocation high-watermark.
func (a *arena) endCursor() uint32 {
	return binary.LittleEndian.Uint32(a.buf[offEndCursor:])
}

func (a *arena) setEndCursor(v uint32) {
	binary.LittleEndian.PutUint32(a.buf[offEndCursor:], v)
}

// alloc reserves size bytes (rounded up to 8) from the arena. Only the
// single server-side writer calls this, serialized by Workspace.mu, so a
// plain (non-atomic) bump of end_cursor is safe; the published value only
// matters to the writer itself across restarts of the same process.
func (a *arena) alloc(size uint32) (uint32, error) {
	size = align8(size)
	cur := a.endCursor()
	next := cur + size
	if next > a.capacity || next < cur {
		return 0, perrors.WrapWithDetail(nil, perrors.ErrResource, "alloc", "arena exhausted")
	}
	a.setEndCursor(next)
	return cur, nil
}
