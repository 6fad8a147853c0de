package workspace

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := OpenMemory(64 * 1024)
	require.NoError(t, err)
	return ws
}

func TestWrite_ThenRead_RoundTrips(t *testing.T) {
	ws := newTestWorkspace(t)

	commit, err := ws.Write("sys.hostname", "box-01")
	require.NoError(t, err)
	require.Equal(t, uint64(1), commit)

	value, gotCommit, ok := ws.Read("sys.hostname")
	require.True(t, ok)
	require.Equal(t, "box-01", value)
	require.Equal(t, commit, gotCommit)
}

func TestRead_MissingName_NotFound(t *testing.T) {
	ws := newTestWorkspace(t)
	_, _, ok := ws.Read("no.such.name")
	require.False(t, ok)
}

// TestCommit_StrictlyIncreasing exercises invariant 2: every write, even to
// the same name, stamps a commit id strictly greater than all prior writes.
func TestCommit_StrictlyIncreasing(t *testing.T) {
	ws := newTestWorkspace(t)
	var last uint64
	for i := 0; i < 50; i++ {
		commit, err := ws.Write(fmt.Sprintf("counter.v%d", i%5), fmt.Sprintf("v%d", i))
		require.NoError(t, err)
		require.Greater(t, commit, last)
		last = commit
	}
}

func TestWrite_OverwriteSameName_UpdatesValue(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Write("a.b.c", "first")
	require.NoError(t, err)
	commit2, err := ws.Write("a.b.c", "second-longer-value")
	require.NoError(t, err)

	value, gotCommit, ok := ws.Read("a.b.c")
	require.True(t, ok)
	require.Equal(t, "second-longer-value", value)
	require.Equal(t, commit2, gotCommit)
}

func TestWrite_ValueTooLong_Rejected(t *testing.T) {
	ws := newTestWorkspace(t)
	big := make([]byte, MaxValueLen+1)
	_, err := ws.Write("x.y", string(big))
	require.Error(t, err)
}

func TestWrite_NameTooLong_Rejected(t *testing.T) {
	ws := newTestWorkspace(t)
	big := make([]byte, MaxNameLen+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := ws.Write(string(big), "v")
	require.Error(t, err)
}

func TestForeachPrefix_VisitsSubtreeOnly(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Write("sys.net.eth0", "up")
	require.NoError(t, err)
	_, err = ws.Write("sys.net.eth1", "down")
	require.NoError(t, err)
	_, err = ws.Write("sys.power", "on")
	require.NoError(t, err)

	seen := map[string]string{}
	ws.ForeachPrefix("sys.net", func(name, value string, commit uint64) bool {
		seen[name] = value
		return true
	})

	require.Equal(t, map[string]string{"sys.net.eth0": "up", "sys.net.eth1": "down"}, seen)
}

func TestForeachPrefix_StopsEarly(t *testing.T) {
	ws := newTestWorkspace(t)
	for i := 0; i < 10; i++ {
		_, err := ws.Write(fmt.Sprintf("group.item%d", i), "v")
		require.NoError(t, err)
	}
	count := 0
	ws.ForeachPrefix("group", func(name, value string, commit uint64) bool {
		count++
		return count < 3
	})
	require.Equal(t, 3, count)
}

func TestAssignLabel_FindLabel_Inherits(t *testing.T) {
	ws := newTestWorkspace(t)
	l := Label{UID: 1000, GID: 1000, Mode: 0x1ff, Tag: "unconfined"}
	idx, err := ws.AssignLabel("app", l)
	require.NoError(t, err)

	_, err = ws.Write("app.config.timeout", "30")
	require.NoError(t, err)

	gotIdx := ws.FindLabel("app.config.timeout")
	require.Equal(t, idx, gotIdx)
	require.Equal(t, l, ws.Label(gotIdx))
}

func TestFindLabel_DefaultsToRootDeny(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Write("unlabeled.thing", "v")
	require.NoError(t, err)
	idx := ws.FindLabel("unlabeled.thing")
	require.Equal(t, DefaultDenyLabel, ws.Label(idx))
}

// TestConcurrentReadsDuringWrite exercises the seqlock discipline: readers
// racing a writer must only ever observe a fully-published value, never a
// torn one.
func TestConcurrentReadsDuringWrite(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.Write("race.counter", "0000000000")
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				value, _, ok := ws.Read("race.counter")
				if ok {
					require.Len(t, value, 10)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := ws.Write("race.counter", fmt.Sprintf("%010d", i))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestIsConstName(t *testing.T) {
	require.True(t, IsConstName("const.board.revision"))
	require.False(t, IsConstName("sys.board.revision"))
}

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("a.b.c"))
	require.NoError(t, ValidateName("const.board-rev_1"))
	require.Error(t, ValidateName(""))
	require.Error(t, ValidateName("a..b"))
	require.Error(t, ValidateName("a b"))
	require.Error(t, ValidateName("a/b"))
	require.Error(t, ValidateName("a.b\x00c"))
}

func TestValidateValue(t *testing.T) {
	require.NoError(t, ValidateValue("sys.hostname", strings.Repeat("a", MaxValueLen)))
	require.Error(t, ValidateValue("sys.hostname", strings.Repeat("a", MaxValueLen+1)))
	require.NoError(t, ValidateValue("const.board.rev", strings.Repeat("a", MaxConstValueLen)))
	require.Error(t, ValidateValue("const.board.rev", strings.Repeat("a", MaxConstValueLen+1)))
}

func TestWrite_ConstName_AllowsLargerValue(t *testing.T) {
	ws := newTestWorkspace(t)
	big := strings.Repeat("a", MaxValueLen+1)
	_, err := ws.Write("const.board.rev", big)
	require.NoError(t, err)

	value, _, ok := ws.Read("const.board.rev")
	require.True(t, ok)
	require.Equal(t, big, value)
}
