package chroot

import (
	"os"
	"path/filepath"
	"time"

	sftpd "github.com/sftpgo-lite/sftpd"
)

// setstat applies whichever fields attrs carries, in the fixed order
// size, uid/gid, permissions, ac/mod time, per
// original_source/pysftpserver/storage.py's setstat, stopping at the
// first failure (spec.md §9 open question #2).
func setstat(
	attrs *sftpd.Attr,
	truncate func(size int64) error,
	chown func(uid, gid int) error,
	chmod func(mode os.FileMode) error,
	chtimes func(atime, mtime time.Time) error,
) error {
	if attrs.Has(sftpd.AttrFlagSize) {
		if err := truncate(int64(attrs.Size)); err != nil {
			return err
		}
	}
	if attrs.Has(sftpd.AttrFlagUIDGID) {
		if err := chown(int(attrs.UID), int(attrs.GID)); err != nil {
			return err
		}
	}
	if attrs.Has(sftpd.AttrFlagPermissions) {
		if err := chmod(attrs.Perms); err != nil {
			return err
		}
	}
	if attrs.Has(sftpd.AttrFlagACModTime) {
		if err := chtimes(attrs.ATime, attrs.MTime); err != nil {
			return err
		}
	}
	return nil
}

// realpath mirrors Python's os.path.realpath closely enough for jail
// containment: it resolves symlinks along the longest prefix of path
// that actually exists, then joins whatever trailing components don't
// exist yet (a file being created, say) back on literally. Go's
// filepath.EvalSymlinks refuses outright if the path doesn't exist, so
// this can't simply delegate to it.
func realpath(path string) (string, error) {
	clean := filepath.Clean(path)
	cur := clean
	var trailing string
	for {
		if _, err := os.Lstat(cur); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// nothing at all exists on this path, including the root;
			// just return the cleaned form.
			return clean, nil
		}
		if trailing == "" {
			trailing = filepath.Base(cur)
		} else {
			trailing = filepath.Join(filepath.Base(cur), trailing)
		}
		cur = parent
	}
	resolved, err := filepath.EvalSymlinks(cur)
	if err != nil {
		return "", err
	}
	if trailing == "" {
		return resolved, nil
	}
	return filepath.Join(resolved, trailing), nil
}
