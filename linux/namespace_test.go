package linux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinNamespaces_MissingProcEntriesAreSkipped(t *testing.T) {
	// PID 1 exists in any container/VM this runs in, but a throwaway high
	// PID almost certainly does not: its /proc/<pid>/ns/* files are
	// absent, which JoinNamespaces treats as "nothing to join" rather
	// than an error.
	err := JoinNamespaces(999999, []NamespaceType{NamespaceNetwork, NamespaceUTS})
	require.NoError(t, err)
}

func TestJoinNamespaces_Empty(t *testing.T) {
	require.NoError(t, JoinNamespaces(1, nil))
}

func TestAllNamespaceTypes_JoinsUserAndMountFirst(t *testing.T) {
	require.Equal(t, NamespaceUser, AllNamespaceTypes[0])
	require.Equal(t, NamespaceMount, AllNamespaceTypes[1])
}
