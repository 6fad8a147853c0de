// paramctl is the command-line client for paramd: get/set/wait/watch/save
// over the request socket, plus the dump/shell/sandbox/module/metrics
// verbs over the control channel.
package main

import (
	"fmt"
	"os"

	"paramd/cmd"
	perrors "paramd/errors"
)

func main() {
	if err := cmd.ClientExecute(); err != nil {
		fmt.Fprintln(os.Stderr, "paramctl:", err)
		code := 1
		if kind, ok := perrors.GetKind(err); ok {
			switch kind {
			case perrors.ErrInvalidConfig:
				code = 2
			case perrors.ErrTimeout:
				code = 3
			}
		}
		os.Exit(code)
	}
}
