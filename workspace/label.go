package workspace

import (
	"encoding/binary"

	perrors "paramd/errors"
)

// AccessMode identifies one of the three permission bits a Label governs.
type AccessMode int

// Access modes, matching the POSIX rwx bits repurposed by spec.md §3.4.
const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessWatch
)

// Label is a (uid, gid, mode, tag) tuple governing access to a subtree.
// Mode packs nine bits: owner/group/other x read/write/watch, in that
// order from the most significant bit, mirroring POSIX rwxrwxrwx.
type Label struct {
	UID  uint32
	GID  uint32
	Mode uint16
	Tag  string // opaque mandatory-access tag, e.g. a SELinux context
}

const maxLabelTagLen = 64

// Permission bit positions within Label.Mode (owner, group, other) x (r, w, x=watch),
// mirroring the nine rwxrwxrwx bits of a POSIX mode_t from most to least significant.
const (
	bitOwnerRead uint16 = 1 << (8 - iota)
	bitOwnerWrite
	bitOwnerWatch
	bitGroupRead
	bitGroupWrite
	bitGroupWatch
	bitOtherRead
	bitOtherWrite
	bitOtherWatch
)

// DefaultDenyLabel is label index 0, always present: the root's label,
// which grants nothing to anyone until a bootstrap step assigns something
// more permissive to a subtree.
var DefaultDenyLabel = Label{UID: 0, GID: 0, Mode: 0, Tag: ""}

func encodeLabel(buf []byte, idx uint16, l Label) error {
	if len(l.Tag) > maxLabelTagLen {
		return perrors.WrapWithDetail(nil, perrors.ErrInvalidConfig, "encodeLabel", "tag too long")
	}
	off := labelRegionOffset + uint32(idx)*labelRecordSize
	binary.LittleEndian.PutUint32(buf[off:], l.UID)
	binary.LittleEndian.PutUint32(buf[off+4:], l.GID)
	binary.LittleEndian.PutUint16(buf[off+8:], l.Mode)
	binary.LittleEndian.PutUint16(buf[off+10:], uint16(len(l.Tag)))
	copy(buf[off+12:off+12+maxLabelTagLen], l.Tag)
	return nil
}

func decodeLabel(buf []byte, idx uint16) Label {
	off := labelRegionOffset + uint32(idx)*labelRecordSize
	tagLen := binary.LittleEndian.Uint16(buf[off+10:])
	return Label{
		UID:  binary.LittleEndian.Uint32(buf[off:]),
		GID:  binary.LittleEndian.Uint32(buf[off+4:]),
		Mode: binary.LittleEndian.Uint16(buf[off+8:]),
		Tag:  string(buf[off+12 : off+12+uint32(tagLen)]),
	}
}

// labelTable manages the fixed-capacity label catalog embedded in the
// workspace buffer. Index 0 is always DefaultDenyLabel.
type labelTable struct {
	buf []byte
}

func newLabelTable(buf []byte) *labelTable {
	return &labelTable{buf: buf}
}

func (t *labelTable) count() uint16 {
	return binary.LittleEndian.Uint16(t.buf[offLabelCount:])
}

func (t *labelTable) setCount(n uint16) {
	binary.LittleEndian.PutUint16(t.buf[offLabelCount:], n)
}

// Get returns the label at idx.
func (t *labelTable) Get(idx uint16) Label {
	return decodeLabel(t.buf, idx)
}

// Add appends a new label and returns its index. Only called during
// bootstrap or by AssignLabel, both single-writer operations.
func (t *labelTable) Add(l Label) (uint16, error) {
	n := t.count()
	if uint32(n) >= maxLabels {
		return 0, perrors.WrapWithDetail(nil, perrors.ErrResource, "addLabel", "label table full")
	}
	if err := encodeLabel(t.buf, n, l); err != nil {
		return 0, err
	}
	t.setCount(n + 1)
	return n, nil
}

// FindOrAdd returns the index of an existing label equal to l, or adds it.
// Labels are deduplicated so that many subtrees sharing identical
// permissions share one table entry, per spec.md §3.4.
func (t *labelTable) FindOrAdd(l Label) (uint16, error) {
	n := t.count()
	for i := uint16(0); i < n; i++ {
		if existing := t.Get(i); existing == l {
			return i, nil
		}
	}
	return t.Add(l)
}

// Check evaluates the DAC decision for creds against the label's mode bits.
func (l Label) Check(uid, gid uint32, mode AccessMode) bool {
	var readBit, writeBit, watchBit uint16
	switch {
	case uid == l.UID:
		readBit, writeBit, watchBit = bitOwnerRead, bitOwnerWrite, bitOwnerWatch
	case gid == l.GID:
		readBit, writeBit, watchBit = bitGroupRead, bitGroupWrite, bitGroupWatch
	default:
		readBit, writeBit, watchBit = bitOtherRead, bitOtherWrite, bitOtherWatch
	}
	switch mode {
	case AccessRead:
		return l.Mode&readBit != 0
	case AccessWrite:
		return l.Mode&writeBit != 0
	case AccessWatch:
		return l.Mode&watchBit != 0
	default:
		return false
	}
}
