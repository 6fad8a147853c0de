package workspace

import (
	"encoding/binary"

	perrors "paramd/errors"
)

// value slot layout, 8-byte aligned:
//
//	commit_id u64 @0   monotonic commit stamp, published last on write
//	capacity  u16 @8   bytes reserved for data, fixed at allocation
//	reserved  u16 @10  padding
//	data      []byte @12, capacity bytes
const (
	valueOffCommitID = 0
	valueOffCapacity = 8
	valueOffData     = 12
)

func valueSlotSize(capacity uint16) uint32 {
	return align8(uint32(valueOffData) + uint32(capacity))
}

// allocValueSlot reserves a value slot holding exactly capacity data bytes
// (the record itself is padded to 8 bytes). Callers choose capacity;
// Write rounds it up with growCapacity so later writes can reuse the slot.
func allocValueSlot(a *arena, capacity uint16) (uint32, error) {
	off, err := a.alloc(valueSlotSize(capacity))
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint64(a.buf[off+valueOffCommitID:], 0)
	binary.LittleEndian.PutUint16(a.buf[off+valueOffCapacity:], capacity)
	return off, nil
}

func valueCapacity(buf []byte, off uint32) uint16 {
	return binary.LittleEndian.Uint16(buf[off+valueOffCapacity:])
}

func valueCommitID(buf []byte, off uint32) uint64 {
	return atomicLoadU64(buf, off+valueOffCommitID)
}

// writeValueSlot publishes a new value into the slot at off and stamps it
// with commitID. Order matters: commit_id is first cleared to 0 to mark
// the write in progress, then the data bytes are written with a plain
// copy (only the single writer touches this slot), then the length is
// published atomically, and finally commit_id is stamped, so a reader
// that overlaps the write sees 0 or a changed commit_id and retries.
func writeValueSlot(buf []byte, off uint32, value string, n nodeView, commitID uint64) error {
	capacity := valueCapacity(buf, off)
	if uint32(len(value)) > uint32(capacity) {
		return perrors.WrapWithDetail(nil, perrors.ErrValueTooLong, "writeValueSlot", "value exceeds slot capacity")
	}
	atomicStoreU64(buf, off+valueOffCommitID, 0)
	copy(buf[off+valueOffData:off+valueOffData+uint32(len(value))], value)
	n.setValueLen(uint32(len(value)))
	atomicStoreU64(buf, off+valueOffCommitID, commitID)
	return nil
}

// readValueSlot performs the seqlock read described in SPEC_FULL.md §9:
// snapshot length and commit id, copy the data, then re-snapshot both and
// retry if either changed underneath the read or a write was in progress
// (commit id 0).
func readValueSlot(buf []byte, off uint32, n nodeView) (string, uint64, bool) {
	l1 := n.valueLen()
	c1 := valueCommitID(buf, off)
	data := make([]byte, l1)
	copy(data, buf[off+valueOffData:off+valueOffData+l1])
	l2 := n.valueLen()
	c2 := valueCommitID(buf, off)
	if l1 != l2 || c1 != c2 || c1 == 0 {
		return "", 0, false
	}
	return string(data), c1, true
}
