// paramd is the shared-memory parameter service daemon: it serves the
// privileged request socket and the auxiliary control-channel socket
// described in SPEC_FULL.md.
package main

import (
	"fmt"
	"os"

	"paramd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "paramd:", err)
		os.Exit(1)
	}
}
