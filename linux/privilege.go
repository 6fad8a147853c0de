package linux

import "syscall"

// DropPrivileges sets supplementary groups, then gid, then uid, in that
// order — uid must be dropped last since losing it first would forbid
// the following setgid/setgroups calls on most kernels. Used by
// PARAM_SHELL before it execs the target binary.
func DropPrivileges(uid, gid int, groups []int) error {
	if err := syscall.Setgroups(groups); err != nil {
		return err
	}
	if err := syscall.Setgid(gid); err != nil {
		return err
	}
	if err := syscall.Setuid(uid); err != nil {
		return err
	}
	return nil
}
