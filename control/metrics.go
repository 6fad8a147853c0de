package control

import (
	"fmt"
	"net"
)

// handleMetrics prints the server's current counters, the observable
// surface SPEC_FULL.md's Metrics component names: NO_SPACE alarms,
// dirty-flush counts, and waiter-queue depth.
func (s *Server) handleMetrics(conn net.Conn) {
	stats := s.metricsSrc.Metrics()
	fmt.Fprintf(conn, "no_space_alarms=%d\n", stats.NoSpaceAlarms)
	fmt.Fprintf(conn, "dirty_flushes=%d\n", stats.DirtyFlushes)
	fmt.Fprintf(conn, "waiter_queue_depth=%d\n", stats.WaiterQueueDepth)
	fmt.Fprint(conn, "END\n")
}
