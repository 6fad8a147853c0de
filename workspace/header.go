// Package workspace implements the memory-mapped trie that backs the
// parameter store: a shared arena of offset-addressed nodes, a label
// catalog, and the global commit counter, per spec.md §3 and §4.1.
package workspace

import (
	"encoding/binary"
)

// WorkspaceMagic identifies a valid workspace backing file ("PARM").
const WorkspaceMagic uint32 = 0x4D524150 // little-endian "PARM"

// WorkspaceVersion is the current on-disk layout version.
const WorkspaceVersion uint16 = 1

// Header field byte offsets within the backing buffer.
const (
	offMagic         = 0
	offVersion       = 4
	offLabelCount    = 6
	offCapacity      = 8
	offEndCursor     = 12
	offGlobalCommit  = 16
	offRootNode      = 24
	offLabelTableOff = 28
	// HeaderSize is the total size of the fixed header.
	HeaderSize = 32
)

// Label region and node arena live after the header. The label region has
// a fixed capacity so indices never need to move when the table grows.
const (
	labelRegionOffset   = HeaderSize
	maxLabels           = 256
	labelRecordSize     = 80 // see label.go
	labelRegionCapacity = maxLabels * labelRecordSize
	arenaStart          = labelRegionOffset + labelRegionCapacity
)

func align8(n uint32) uint32 {
	return (n + 7) &^ 7
}

func readHeaderMagic(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offMagic:])
}

func writeHeader(buf []byte, capacity uint32) {
	binary.LittleEndian.PutUint32(buf[offMagic:], WorkspaceMagic)
	binary.LittleEndian.PutUint16(buf[offVersion:], WorkspaceVersion)
	binary.LittleEndian.PutUint16(buf[offLabelCount:], 0)
	binary.LittleEndian.PutUint32(buf[offCapacity:], capacity)
	binary.LittleEndian.PutUint32(buf[offEndCursor:], arenaStart)
	binary.LittleEndian.PutUint64(buf[offGlobalCommit:], 0)
	binary.LittleEndian.PutUint32(buf[offRootNode:], 0)
	binary.LittleEndian.PutUint32(buf[offLabelTableOff:], labelRegionOffset)
}

func readCapacity(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offCapacity:])
}

func readLabelTableOffset(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[offLabelTableOff:])
}
