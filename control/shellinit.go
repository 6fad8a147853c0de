package control

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	perrors "paramd/errors"
	"paramd/linux"
)

// RunShellInit is the child-side half of PARAM_SHELL. It is invoked by
// re-executing the running paramd binary as "paramd shell-init <path>
// [args...]"; the parent passes the sync pipe's write end as fd 3 and
// the target uid/gid/namespace pid as environment variables. On any
// failure before exec it writes the error into the pipe; on success the
// pipe fd is closed (via CLOEXEC) by the exec itself, which is how the
// parent distinguishes the two outcomes (utils.SyncPipe.WaitWithError).
func RunShellInit(args []string) {
	pipe := os.NewFile(3, "paramshell-sync")

	fail := func(err error) {
		if pipe != nil {
			pipe.Write([]byte(err.Error()))
		}
		os.Exit(1)
	}

	if len(args) == 0 {
		fail(fmt.Errorf("shell-init: no target path given"))
		return
	}
	path, shellArgs := args[0], args[1:]

	uid, okUID := envInt("_PARAMD_SHELL_UID")
	gid, okGID := envInt("_PARAMD_SHELL_GID")
	if !okUID || !okGID {
		fail(fmt.Errorf("shell-init: missing uid/gid environment"))
		return
	}
	nsPID, _ := envInt("_PARAMD_SHELL_NSPID")

	if nsPID > 0 {
		if err := linux.JoinNamespaces(nsPID, linux.AllNamespaceTypes); err != nil {
			fail(fmt.Errorf("%w: %v", perrors.ErrNamespaceJoin, err))
			return
		}
	}

	if err := linux.DropPrivileges(uid, gid, nil); err != nil {
		fail(fmt.Errorf("%w: %v", perrors.ErrPrivilegeDrop, err))
		return
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		fail(fmt.Errorf("shell-init: %w", err))
		return
	}

	if pipe != nil {
		syscall.CloseOnExec(3)
	}

	if err := syscall.Exec(resolved, append([]string{resolved}, shellArgs...), os.Environ()); err != nil {
		fail(fmt.Errorf("shell-init: exec %s: %w", resolved, err))
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
