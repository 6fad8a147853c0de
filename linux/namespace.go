// Package linux adapts the low-level namespace and privilege-drop
// primitives a container runtime needs into the flat shape paramd's
// SANDBOX and PARAM_SHELL control verbs need: join another process's
// already-running namespaces, and drop to a plain (uid, gid, groups)
// triple before exec. There is no namespace *creation* here, since
// paramd never constructs a sandbox of its own.
package linux

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// NamespaceType names one of the namespace kinds exposed under
// /proc/<pid>/ns/.
type NamespaceType string

// Namespace kinds SANDBOX may join, matching the /proc/<pid>/ns/* file
// names.
const (
	NamespaceMount   NamespaceType = "mnt"
	NamespaceUTS     NamespaceType = "uts"
	NamespaceIPC     NamespaceType = "ipc"
	NamespacePID     NamespaceType = "pid"
	NamespaceNetwork NamespaceType = "net"
	NamespaceUser    NamespaceType = "user"
	NamespaceCgroup  NamespaceType = "cgroup"
)

// AllNamespaceTypes is the join order SANDBOX uses: user and mount
// namespaces first, since entering them can change how later /proc
// paths resolve.
var AllNamespaceTypes = []NamespaceType{
	NamespaceUser,
	NamespaceMount,
	NamespaceUTS,
	NamespaceIPC,
	NamespacePID,
	NamespaceNetwork,
	NamespaceCgroup,
}

var namespaceCloneFlag = map[NamespaceType]uintptr{
	NamespaceMount:   syscall.CLONE_NEWNS,
	NamespaceUTS:     syscall.CLONE_NEWUTS,
	NamespaceIPC:     syscall.CLONE_NEWIPC,
	NamespacePID:     syscall.CLONE_NEWPID,
	NamespaceNetwork: syscall.CLONE_NEWNET,
	NamespaceUser:    syscall.CLONE_NEWUSER,
	NamespaceCgroup:  0x02000000,
}

// JoinNamespaces setns(2)s into every namespace of pid listed in types, in
// the order given. Missing namespace files (a kernel built without a
// given namespace type) are skipped rather than treated as fatal.
func JoinNamespaces(pid int, types []NamespaceType) error {
	for _, t := range types {
		path := fmt.Sprintf("/proc/%d/ns/%s", pid, t)
		if err := setns(path, t); err != nil {
			if isNotExist(err) {
				continue
			}
			return fmt.Errorf("setns %s (%s): %w", t, path, err)
		}
	}
	return nil
}

func isNotExist(err error) bool {
	return err == syscall.ENOENT
}

// setns joins a single existing namespace by its /proc/<pid>/ns/<type> path.
func setns(path string, t NamespaceType) error {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_CLOEXEC, 0)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == syscall.ENOENT {
			return syscall.ENOENT
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer syscall.Close(fd)

	flag := namespaceCloneFlag[t]
	_, _, errno := syscall.Syscall(unix.SYS_SETNS, uintptr(fd), flag, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
