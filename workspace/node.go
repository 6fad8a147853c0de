package workspace

import (
	"encoding/binary"

	perrors "paramd/errors"
)

// node record layout within the arena, 8-byte aligned:
//
//	next_sibling  u32 @0   offset of this node's next sibling, or 0
//	first_child   u32 @4   offset of this node's first child, or 0
//	value_offset  u32 @8   offset of this node's value slot, or 0 if none
//	value_len     u32 @12  current length of the published value
//	label_index   u16 @16  index into the label table, set at creation and
//	                       changed afterwards only by AssignLabel at bootstrap
//	seg_len       u16 @18  length of the path segment this node contributes
//	seg           []byte @20, seg_len bytes, padded to 8-byte boundary
//
// value_len is u32 rather than u16 because Go's sync/atomic has no native
// sub-word primitive; widening keeps every concurrently-accessed field
// naturally atomic-safe without resorting to word-masking tricks.
const (
	nodeOffNextSibling = 0
	nodeOffFirstChild  = 4
	nodeOffValueOffset = 8
	nodeOffValueLen    = 12
	nodeOffLabelIndex  = 16
	nodeOffSegLen      = 18
	nodeOffSeg         = 20
)

const maxSegLen = 63

func nodeSize(segLen int) uint32 {
	return align8(uint32(nodeOffSeg + segLen))
}

// newNode allocates and writes an immutable node record for seg, returning
// its offset. next_sibling, first_child and value_offset start at 0 (null).
// Only the single writer goroutine calls this.
func newNode(a *arena, seg string, labelIndex uint16) (uint32, error) {
	if len(seg) > maxSegLen {
		return 0, perrors.WrapWithDetail(nil, perrors.ErrInvalidName, "newNode", "path segment too long")
	}
	off, err := a.alloc(nodeSize(len(seg)))
	if err != nil {
		return 0, err
	}
	buf := a.buf
	binary.LittleEndian.PutUint32(buf[off+nodeOffNextSibling:], 0)
	binary.LittleEndian.PutUint32(buf[off+nodeOffFirstChild:], 0)
	binary.LittleEndian.PutUint32(buf[off+nodeOffValueOffset:], 0)
	binary.LittleEndian.PutUint32(buf[off+nodeOffValueLen:], 0)
	binary.LittleEndian.PutUint16(buf[off+nodeOffLabelIndex:], labelIndex)
	binary.LittleEndian.PutUint16(buf[off+nodeOffSegLen:], uint16(len(seg)))
	copy(buf[off+nodeOffSeg:], seg)
	return off, nil
}

// nodeView is a thin accessor over a node record at a fixed offset.
type nodeView struct {
	buf []byte
	off uint32
}

func node(buf []byte, off uint32) nodeView {
	return nodeView{buf: buf, off: off}
}

func (n nodeView) segLen() uint16 {
	return binary.LittleEndian.Uint16(n.buf[n.off+nodeOffSegLen:])
}

func (n nodeView) seg() string {
	l := n.segLen()
	return string(n.buf[n.off+nodeOffSeg : n.off+nodeOffSeg+uint32(l)])
}

func (n nodeView) labelIndex() uint16 {
	return binary.LittleEndian.Uint16(n.buf[n.off+nodeOffLabelIndex:])
}

// nextSibling / firstChild / valueOffset / valueLen are published with
// release stores and observed with acquire loads: readers may be walking
// the trie in another process while the writer links new nodes in.
func (n nodeView) nextSibling() uint32 {
	return atomicLoadU32(n.buf, n.off+nodeOffNextSibling)
}

func (n nodeView) setNextSibling(v uint32) {
	atomicStoreU32(n.buf, n.off+nodeOffNextSibling, v)
}

func (n nodeView) firstChild() uint32 {
	return atomicLoadU32(n.buf, n.off+nodeOffFirstChild)
}

func (n nodeView) setFirstChild(v uint32) {
	atomicStoreU32(n.buf, n.off+nodeOffFirstChild, v)
}

func (n nodeView) valueOffset() uint32 {
	return atomicLoadU32(n.buf, n.off+nodeOffValueOffset)
}

func (n nodeView) setValueOffset(v uint32) {
	atomicStoreU32(n.buf, n.off+nodeOffValueOffset, v)
}

func (n nodeView) valueLen() uint32 {
	return atomicLoadU32(n.buf, n.off+nodeOffValueLen)
}

func (n nodeView) setValueLen(v uint32) {
	atomicStoreU32(n.buf, n.off+nodeOffValueLen, v)
}
