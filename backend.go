package sftp

// Backend is the storage contract every SFTP backend satisfies, per
// spec.md §4.3. File names are byte strings as received on the wire;
// a backend is responsible for any character-set interpretation.
//
// Grounded on original_source/pysftpserver/storage.py's
// SFTPServerStorage, one capability set implemented by a single
// concrete class, translated into a Go interface.
type Backend interface {
	// Verify is called before any name-based operation; it may reject
	// the name (ErrForbidden) or rewrite it to canonical form. Every
	// other method below receives only names that have already passed
	// Verify.
	Verify(name string) (string, error)

	// Stat returns the attributes of name. lstat selects the
	// non-symlink-following variant.
	Stat(name string, lstat bool) (*Attr, error)

	// Setstat applies only the fields present in attrs, in the fixed
	// order size, uid/gid, permissions, ac/mod time, stopping at the
	// first failure (spec.md §9 open question #2).
	Setstat(name string, attrs *Attr) error

	OpenDir(name string) (DirIter, error)

	// Open opens name with the given OS-mapped flags (see openFlag.osFlags)
	// and, if the CREAT flag is set, perm as the creation mode.
	Open(name string, flags int, perm Perm) (FileHandle, error)

	Mkdir(name string, perm Perm) error
	Rmdir(name string) error
	Remove(name string) error

	// Rename refuses if newName already exists, per SFTPv3 semantics.
	Rename(oldName, newName string) error

	// Symlink argument order is (new link path, existing target),
	// matching spec.md §4.3.
	Symlink(linkName, target string) error
	Readlink(name string) (string, error)
}

// Perm is the permission-bits subset of os.FileMode carried on OPEN
// and MKDIR requests.
type Perm = uint32

// FileHandle is a backend's open-file object: random-access read and
// write plus an fstat/fsetstat pair keyed by the handle itself rather
// than by name.
type FileHandle interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Stat() (*Attr, error)
	Setstat(attrs *Attr) error
	Close() error
}

// DirIter is a backend's open-directory object: a finite,
// non-restartable sequence of (name, attributes) pairs. Next returns
// io.EOF once the directory is exhausted; spec.md §3 requires the
// sequence to begin with "." and ".." followed by the backend-defined
// entries in unspecified order.
type DirIter interface {
	// Next returns the next entry, or io.EOF once exhausted.
	Next() (DirEntry, error)
	Close() error
}

// DirEntry is one name yielded by a DirIter, together with its
// attributes (already stat'd, so READDIR never issues a second
// backend call per entry).
type DirEntry struct {
	Name string
	Attr *Attr
}
