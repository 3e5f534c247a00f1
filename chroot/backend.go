// Package chroot implements the reference virtual-chroot backend:
// every path a client sends is canonicalized and checked against a
// jail directory before it ever reaches the filesystem.
//
// Grounded on original_source/pysftpserver/virtualchroot.py and
// storage.py (home/verify/stat/setstat/opendir et al.) with the
// wrapper-struct adapter idiom (backend/file/dir split) taken from
// samterainsights-sftp/handler_host_fs.go.
package chroot

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	sftpd "github.com/sftpgo-lite/sftpd"
)

// Backend jails every resolved path inside home. It is not safe for
// concurrent use, matching the single-threaded session it is built to
// serve.
type Backend struct {
	home   string
	parent string
	umask  os.FileMode
}

// New builds a Backend rooted at dir. dir is resolved to its canonical
// form immediately (mirroring virtualchroot.py's
// self.home = os.path.realpath(home)); it must already exist.
//
// umask is applied to every mode this backend creates a file or
// directory with, in place of relying on the process umask (which a
// single long-running server process should not mutate out from under
// other sessions).
func New(dir string, umask os.FileMode) (*Backend, error) {
	home, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "chroot: resolve jail directory")
	}
	home, err = realpath(home)
	if err != nil {
		return nil, errors.Wrap(err, "chroot: resolve jail directory")
	}
	fi, err := os.Stat(home)
	if err != nil {
		return nil, errors.Wrap(err, "chroot: jail directory")
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("chroot: %s is not a directory", home)
	}
	return &Backend{
		home:   home,
		parent: filepath.Dir(home),
		umask:  umask,
	}, nil
}

// Verify canonicalizes name (relative to home when not already
// absolute) and accepts it only if it is home itself or lives under
// home. This is the security perimeter every other method relies on
// having already been applied to its arguments.
func (b *Backend) Verify(name string) (string, error) {
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(b.home, target)
	}
	canon, err := realpath(target)
	if err != nil {
		return "", errors.Wrap(err, "chroot: resolve path")
	}
	if canon != b.home && !strings.HasPrefix(canon, b.home+string(filepath.Separator)) {
		return "", sftpd.Forbiddenf("%s escapes the jail", name)
	}
	return canon, nil
}

func (b *Backend) applyUmask(perm sftpd.Perm) os.FileMode {
	return os.FileMode(perm) &^ b.umask
}

func (b *Backend) Stat(name string, lstat bool) (*sftpd.Attr, error) {
	var fi os.FileInfo
	var err error
	if lstat {
		fi, err = os.Lstat(name)
	} else {
		fi, err = os.Stat(name)
	}
	if err != nil {
		return nil, err
	}
	return sftpd.AttrFromFileInfo(fi), nil
}

// Setstat applies fields in the fixed order size, uid/gid, permissions,
// ac/mod time, per original_source/pysftpserver/storage.py's own
// ordering, stopping at the first failure.
func (b *Backend) Setstat(name string, attrs *sftpd.Attr) error {
	return setstat(attrs,
		func(size int64) error { return os.Truncate(name, size) },
		func(uid, gid int) error { return os.Chown(name, uid, gid) },
		func(mode os.FileMode) error { return os.Chmod(name, mode) },
		func(atime, mtime time.Time) error { return os.Chtimes(name, atime, mtime) },
	)
}

func (b *Backend) OpenDir(name string) (sftpd.DirIter, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("chroot: %s is not a directory", name)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	forced := []sftpd.DirEntry{
		b.forcedEntry(name, "."),
		b.forcedEntry(filepath.Dir(name), ".."),
	}
	return &dirIter{f: f, dir: name, forced: forced}, nil
}

// forcedEntry stats target for the synthetic "." / ".." entries.
// Unlike every other name-based call, this path is never re-verified:
// ".." legitimately points at b.parent, which sits outside the jail by
// definition (SPEC_FULL.md §4).
func (b *Backend) forcedEntry(target, label string) sftpd.DirEntry {
	fi, err := os.Stat(target)
	if err != nil {
		return sftpd.DirEntry{Name: label, Attr: &sftpd.Attr{}}
	}
	return sftpd.DirEntry{Name: label, Attr: sftpd.AttrFromFileInfo(fi)}
}

func (b *Backend) Open(name string, flags int, perm sftpd.Perm) (sftpd.FileHandle, error) {
	f, err := os.OpenFile(name, flags, b.applyUmask(perm))
	if err != nil {
		return nil, err
	}
	return &file{f: f}, nil
}

func (b *Backend) Mkdir(name string, perm sftpd.Perm) error {
	return os.Mkdir(name, b.applyUmask(perm))
}

func (b *Backend) Rmdir(name string) error {
	fi, err := os.Lstat(name)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("chroot: %s is not a directory", name)
	}
	return os.Remove(name)
}

func (b *Backend) Remove(name string) error {
	fi, err := os.Lstat(name)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errors.Errorf("chroot: %s is a directory", name)
	}
	return os.Remove(name)
}

func (b *Backend) Rename(oldName, newName string) error {
	if _, err := os.Lstat(newName); err == nil {
		return errors.Errorf("chroot: %s already exists", newName)
	}
	return os.Rename(oldName, newName)
}

// Symlink stores target verbatim. The dispatcher has already run both
// linkName and target through Verify before calling here (SPEC_FULL.md
// §4; original_source/pysftpserver/tests/test_server_chroot.py's
// test_symlink rejects a target that escapes the jail), so by the time
// this method runs target is already a canonical, contained path.
func (b *Backend) Symlink(linkName, target string) error {
	return os.Symlink(target, linkName)
}

func (b *Backend) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

type file struct {
	f *os.File
}

func (fh *file) ReadAt(p []byte, off int64) (int, error)  { return fh.f.ReadAt(p, off) }
func (fh *file) WriteAt(p []byte, off int64) (int, error) { return fh.f.WriteAt(p, off) }
func (fh *file) Close() error                             { return fh.f.Close() }

func (fh *file) Stat() (*sftpd.Attr, error) {
	fi, err := fh.f.Stat()
	if err != nil {
		return nil, err
	}
	return sftpd.AttrFromFileInfo(fi), nil
}

func (fh *file) Setstat(attrs *sftpd.Attr) error {
	return setstat(attrs,
		func(size int64) error { return fh.f.Truncate(size) },
		func(uid, gid int) error { return fh.f.Chown(uid, gid) },
		func(mode os.FileMode) error { return fh.f.Chmod(mode) },
		func(atime, mtime time.Time) error { return os.Chtimes(fh.f.Name(), atime, mtime) },
	)
}

type dirIter struct {
	f      *os.File
	dir    string
	forced []sftpd.DirEntry
	done   bool
}

func (d *dirIter) Next() (sftpd.DirEntry, error) {
	if len(d.forced) > 0 {
		e := d.forced[0]
		d.forced = d.forced[1:]
		return e, nil
	}
	if d.done {
		return sftpd.DirEntry{}, io.EOF
	}
	names, err := d.f.Readdirnames(1)
	if err != nil {
		d.done = true
		return sftpd.DirEntry{}, io.EOF
	}
	name := names[0]
	fi, serr := os.Lstat(filepath.Join(d.dir, name))
	if serr != nil {
		return sftpd.DirEntry{Name: name, Attr: &sftpd.Attr{}}, nil
	}
	return sftpd.DirEntry{Name: name, Attr: sftpd.AttrFromFileInfo(fi)}, nil
}

func (d *dirIter) Close() error { return d.f.Close() }
