package control

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"paramd/metrics"
)

type fakeMetricsSource struct {
	stats metrics.Stats
}

func (f fakeMetricsSource) Metrics() metrics.Stats { return f.stats }

func TestSplitTag(t *testing.T) {
	tag, rest := splitTag("DUMP persist.sys --follow")
	require.Equal(t, "DUMP", tag)
	require.Equal(t, "persist.sys --follow", rest)

	tag, rest = splitTag("SAVE")
	require.Equal(t, "SAVE", tag)
	require.Equal(t, "", rest)
}

func TestValidModuleCommand(t *testing.T) {
	require.True(t, validModuleCommand("list"))
	require.True(t, validModuleCommand("install:/lib/modules/foo.km"))
	require.True(t, validModuleCommand("uninstall:foo"))
	require.False(t, validModuleCommand("install:"))
	require.False(t, validModuleCommand("uninstall:"))
	require.False(t, validModuleCommand("bogus"))
	require.False(t, validModuleCommand(""))
}

func TestParseDumpArgs(t *testing.T) {
	prefix, follow := parseDumpArgs("")
	require.Equal(t, "", prefix)
	require.False(t, follow)

	prefix, follow = parseDumpArgs("persist.sys")
	require.Equal(t, "persist.sys", prefix)
	require.False(t, follow)

	prefix, follow = parseDumpArgs("persist.sys --follow")
	require.Equal(t, "persist.sys", prefix)
	require.True(t, follow)

	prefix, follow = parseDumpArgs("--follow")
	require.Equal(t, "", prefix)
	require.True(t, follow)
}

func TestRenderDump(t *testing.T) {
	out := renderDump("sys.hostname=box1\nsys.a=1\n")
	require.Equal(t, "sys.a         1\nsys.hostname  box1\n", out)
}

func TestRenderDump_Empty(t *testing.T) {
	require.Equal(t, "", renderDump(""))
	require.Equal(t, "", renderDump("\n"))
}

func TestRenderDump_SkipsMalformedLines(t *testing.T) {
	out := renderDump("sys.ok=1\nnotkeyvalue\n")
	require.Equal(t, "sys.ok  1\n", out)
}

func TestHandleMetrics(t *testing.T) {
	s := &Server{
		metricsSrc: fakeMetricsSource{stats: metrics.Stats{
			NoSpaceAlarms:    2,
			DirtyFlushes:     5,
			WaiterQueueDepth: 3,
		}},
	}

	server, client := net.Pipe()
	defer client.Close()

	go func() {
		s.handleMetrics(server)
		server.Close()
	}()

	scanner := bufio.NewScanner(client)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Equal(t, []string{
		"no_space_alarms=2",
		"dirty_flushes=5",
		"waiter_queue_depth=3",
		"END",
	}, lines)
}
