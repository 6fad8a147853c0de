package control

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// handleSandbox resolves the target service's pid from the parameter
// registry's "sys.service.<name>.pid" entry — paramd is the canonical
// registry, so the service supervisor is expected to publish its
// children's pids there — and records it on the connection. It does not
// setns itself: joining namespaces here would affect the long-lived
// control-server process. The actual setns happens in the forked child a
// later PARAM_SHELL on this connection spawns.
func (s *Server) handleSandbox(conn net.Conn, st *connState, rest string) {
	if rest == "" {
		fmt.Fprintf(conn, "ERROR SANDBOX requires a service name\n")
		return
	}

	pidStr, err := s.reader.Get("sys.service." + rest + ".pid")
	if err != nil {
		fmt.Fprintf(conn, "ERROR unknown service %q: %v\n", rest, err)
		return
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		fmt.Fprintf(conn, "ERROR service %q has malformed pid %q\n", rest, pidStr)
		return
	}
	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err != nil {
		fmt.Fprintf(conn, "ERROR service %q pid %d is not running\n", rest, pid)
		return
	}

	st.sandboxPID = pid
	fmt.Fprintf(conn, "OK sandboxed into %s (pid %d)\n", rest, pid)
}
