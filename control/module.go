package control

import (
	"fmt"
	"io"
	"net"
	"strings"
)

// handleModule validates an install:/uninstall:/list command and forwards
// it verbatim to the external module-manager socket, proxying the reply
// back to the caller. The module loader itself is an external
// collaborator this repository does not implement (spec.md §1); this is
// only the forwarding envelope.
func (s *Server) handleModule(conn net.Conn, rest string) {
	if !validModuleCommand(rest) {
		fmt.Fprintf(conn, "ERROR invalid module command %q\n", rest)
		return
	}
	if s.cfg.ModuleManagerSocketPath == "" {
		fmt.Fprintf(conn, "ERROR no module manager configured\n")
		return
	}

	mgr, err := net.Dial("unix", s.cfg.ModuleManagerSocketPath)
	if err != nil {
		fmt.Fprintf(conn, "ERROR module manager unreachable: %v\n", err)
		return
	}
	defer mgr.Close()

	if _, err := fmt.Fprintf(mgr, "MODULE %s\n", rest); err != nil {
		fmt.Fprintf(conn, "ERROR %v\n", err)
		return
	}
	io.Copy(conn, mgr)
}

func validModuleCommand(rest string) bool {
	switch {
	case rest == "list":
		return true
	case strings.HasPrefix(rest, "install:") && len(rest) > len("install:"):
		return true
	case strings.HasPrefix(rest, "uninstall:") && len(rest) > len("uninstall:"):
		return true
	default:
		return false
	}
}
