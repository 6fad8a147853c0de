package workspace

import (
	"os"

	"golang.org/x/sys/unix"

	perrors "paramd/errors"
)

// OpenFile maps path into memory as a workspace backing file, creating and
// sizing it to capacity if it does not already exist. The returned
// Workspace's Close unmaps the region and closes the file descriptor.
func OpenFile(path string, capacity uint32) (*Workspace, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrResource, "OpenFile")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, perrors.Wrap(err, perrors.ErrResource, "OpenFile")
	}
	if uint32(info.Size()) < capacity {
		if err := f.Truncate(int64(capacity)); err != nil {
			f.Close()
			return nil, perrors.Wrap(err, perrors.ErrResource, "OpenFile")
		}
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, perrors.Wrap(err, perrors.ErrResource, "OpenFile")
	}

	closer := func() error {
		unmapErr := unix.Munmap(buf)
		closeErr := f.Close()
		if unmapErr != nil {
			return unmapErr
		}
		return closeErr
	}

	ws, err := Open(buf, closer)
	if err != nil {
		closer()
		return nil, err
	}
	return ws, nil
}
