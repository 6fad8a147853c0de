package workspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNode_FieldsRoundTrip(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	off, err := newNode(a, "hostname", 3)
	require.NoError(t, err)

	n := node(buf, off)
	require.Equal(t, "hostname", n.seg())
	require.EqualValues(t, 3, n.labelIndex())
	require.EqualValues(t, 0, n.nextSibling())
	require.EqualValues(t, 0, n.firstChild())
	require.EqualValues(t, 0, n.valueOffset())
	require.EqualValues(t, 0, n.valueLen())
}

func TestNewNode_SegTooLong_Rejected(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	big := make([]byte, maxSegLen+1)
	for i := range big {
		big[i] = 'x'
	}
	_, err := newNode(a, string(big), 0)
	require.Error(t, err)
}

func TestNode_LinkFields_AreAtomicSafe(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	parentOff, err := newNode(a, "parent", 0)
	require.NoError(t, err)
	childOff, err := newNode(a, "child", 0)
	require.NoError(t, err)

	parent := node(buf, parentOff)
	child := node(buf, childOff)
	child.setNextSibling(parent.firstChild())
	parent.setFirstChild(childOff)

	require.Equal(t, childOff, parent.firstChild())
	require.EqualValues(t, 0, child.nextSibling())
}

func TestAllocValueSlot_CapacityAndCommitID(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	off, err := allocValueSlot(a, 64)
	require.NoError(t, err)
	require.EqualValues(t, 64, valueCapacity(buf, off))
	require.EqualValues(t, 0, valueCommitID(buf, off))
}

func TestWriteValueSlot_ExceedsCapacity_Rejected(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	nodeOff, err := newNode(a, "v", 0)
	require.NoError(t, err)
	valOff, err := allocValueSlot(a, 4)
	require.NoError(t, err)

	err = writeValueSlot(buf, valOff, "toolong", node(buf, nodeOff), 1)
	require.Error(t, err)
}

func TestArena_AllocIsEightByteAligned(t *testing.T) {
	buf := make([]byte, 4096)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	off1, err := a.alloc(3)
	require.NoError(t, err)
	off2, err := a.alloc(5)
	require.NoError(t, err)
	require.Zero(t, off1%8)
	require.Zero(t, off2%8)
}

func TestArena_ExhaustionReturnsResourceError(t *testing.T) {
	buf := make([]byte, arenaStart+16)
	a := newArena(buf, uint32(len(buf)))
	a.setEndCursor(arenaStart)

	_, err := a.alloc(8)
	require.NoError(t, err)
	_, err = a.alloc(64)
	require.Error(t, err)
}
