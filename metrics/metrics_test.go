package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollector_Snapshot(t *testing.T) {
	c := New()
	stats := c.Snapshot(3)
	require.Zero(t, stats.NoSpaceAlarms)
	require.Zero(t, stats.DirtyFlushes)
	require.Equal(t, 3, stats.WaiterQueueDepth)

	c.IncNoSpaceAlarm()
	c.IncNoSpaceAlarm()
	c.IncDirtyFlush()

	stats = c.Snapshot(0)
	require.EqualValues(t, 2, stats.NoSpaceAlarms)
	require.EqualValues(t, 1, stats.DirtyFlushes)
	require.Equal(t, 0, stats.WaiterQueueDepth)
}
