// Package memfs is an in-memory Backend, used as a test fixture so
// the rest of the engine can be exercised without touching a real
// filesystem. Grounded on samterainsights-sftp/handler_memory_fs.go's
// flat map[string]*memFile design (name/content/isdir/symlink fields,
// a single mutex-guarded map standing in for a whole filesystem),
// rewritten against the sftpd.Backend contract in place of that
// file's RequestHandler methods.
package memfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sftpd "github.com/sftpgo-lite/sftpd"
)

// Backend is a flat, in-memory filesystem rooted at "/". It is safe
// for concurrent use (a single mutex guards the whole tree) even
// though the engine never calls it concurrently; tests that poke at
// it directly alongside a running Session get that for free.
type Backend struct {
	mu    sync.Mutex
	nodes map[string]*node
}

// New returns an empty Backend containing only the root directory.
func New() *Backend {
	return &Backend{
		nodes: map[string]*node{
			"/": {name: "/", isDir: true, mode: 0o755, mtime: time.Now()},
		},
	}
}

type node struct {
	name    string
	isDir   bool
	symlink string // non-empty: this node is a symlink to this target
	mode    os.FileMode
	uid     uint32
	gid     uint32
	mtime   time.Time
	atime   time.Time
	content []byte
}

func clean(name string) string {
	if name == "" {
		return "/"
	}
	c := filepath.Clean("/" + name)
	return c
}

// Verify on the in-memory backend only normalizes the path; there is
// no jail to escape since the whole tree is the sandbox.
func (b *Backend) Verify(name string) (string, error) {
	return clean(name), nil
}

func (b *Backend) lookup(name string) (*node, error) {
	n, ok := b.nodes[name]
	if !ok {
		return nil, sftpd.ErrNotFound
	}
	return n, nil
}

func (b *Backend) resolve(name string) (*node, error) {
	n, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.symlink != "" {
		return b.resolve(n.symlink)
	}
	return n, nil
}

func attrOf(n *node) *sftpd.Attr {
	mode := n.mode
	if n.isDir {
		mode |= os.ModeDir
	}
	if n.symlink != "" {
		mode |= os.ModeSymlink
	}
	return &sftpd.Attr{
		Flags: sftpd.AttrFlagSize | sftpd.AttrFlagUIDGID | sftpd.AttrFlagPermissions | sftpd.AttrFlagACModTime,
		Size:  uint64(len(n.content)),
		UID:   n.uid,
		GID:   n.gid,
		Perms: mode,
		ATime: n.atime,
		MTime: n.mtime,
	}
}

func (b *Backend) Stat(name string, lstat bool) (*sftpd.Attr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n *node
	var err error
	if lstat {
		n, err = b.lookup(name)
	} else {
		n, err = b.resolve(name)
	}
	if err != nil {
		return nil, err
	}
	return attrOf(n), nil
}

func (b *Backend) Setstat(name string, attrs *sftpd.Attr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.resolve(name)
	if err != nil {
		return err
	}
	if attrs.Has(sftpd.AttrFlagSize) {
		n.content = resize(n.content, int(attrs.Size))
	}
	if attrs.Has(sftpd.AttrFlagUIDGID) {
		n.uid, n.gid = attrs.UID, attrs.GID
	}
	if attrs.Has(sftpd.AttrFlagPermissions) {
		n.mode = attrs.Perms & os.ModePerm
	}
	if attrs.Has(sftpd.AttrFlagACModTime) {
		n.atime, n.mtime = attrs.ATime, attrs.MTime
	}
	return nil
}

func resize(b []byte, n int) []byte {
	if n <= len(b) {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (b *Backend) OpenDir(name string) (sftpd.DirIter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.resolve(name)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, sftpd.NotFoundf("%s is not a directory", name)
	}
	dirPath := clean(name)
	var children []string
	for p := range b.nodes {
		if p == "/" {
			continue
		}
		if filepath.Dir(p) == dirPath {
			children = append(children, p)
		}
	}
	sort.Strings(children)

	parent := filepath.Dir(dirPath)
	forced := []sftpd.DirEntry{
		{Name: ".", Attr: attrOf(n)},
		{Name: "..", Attr: attrOf(b.nodes[parent])},
	}
	return &dirIter{b: b, children: children, forced: forced}, nil
}

type dirIter struct {
	b        *Backend
	children []string
	forced   []sftpd.DirEntry
	i        int
}

func (d *dirIter) Next() (sftpd.DirEntry, error) {
	if len(d.forced) > 0 {
		e := d.forced[0]
		d.forced = d.forced[1:]
		return e, nil
	}
	d.b.mu.Lock()
	defer d.b.mu.Unlock()
	if d.i >= len(d.children) {
		return sftpd.DirEntry{}, io.EOF
	}
	p := d.children[d.i]
	d.i++
	n := d.b.nodes[p]
	return sftpd.DirEntry{Name: filepath.Base(p), Attr: attrOf(n)}, nil
}

func (d *dirIter) Close() error { return nil }

func (b *Backend) Open(name string, flags int, perm sftpd.Perm) (sftpd.FileHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = clean(name)
	n, err := b.resolve(name)
	if err != nil {
		if flags&os.O_CREATE == 0 {
			return nil, err
		}
		parent := filepath.Dir(name)
		p, perr := b.resolve(parent)
		if perr != nil {
			return nil, perr
		}
		if !p.isDir {
			return nil, sftpd.NotFoundf("%s: parent is not a directory", name)
		}
		n = &node{name: name, mode: os.FileMode(perm) & os.ModePerm, mtime: time.Now(), atime: time.Now()}
		b.nodes[name] = n
	} else if flags&(os.O_CREATE|os.O_EXCL) == (os.O_CREATE | os.O_EXCL) {
		return nil, sftpd.Forbiddenf("%s already exists", name)
	}
	if n.isDir {
		return nil, sftpd.NotFoundf("%s is a directory", name)
	}
	if flags&os.O_TRUNC != 0 {
		n.content = nil
	}
	return &file{b: b, n: n, appendOnly: flags&os.O_APPEND != 0}, nil
}

type file struct {
	b          *Backend
	n          *node
	appendOnly bool
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if off >= int64(len(f.n.content)) {
		return 0, io.EOF
	}
	n := copy(p, f.n.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.appendOnly {
		off = int64(len(f.n.content))
	}
	need := int(off) + len(p)
	if need > len(f.n.content) {
		f.n.content = resize(f.n.content, need)
	}
	copy(f.n.content[off:], p)
	f.n.mtime = time.Now()
	return len(p), nil
}

func (f *file) Stat() (*sftpd.Attr, error) {
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return attrOf(f.n), nil
}

func (f *file) Setstat(attrs *sftpd.Attr) error {
	return f.b.Setstat(f.n.name, attrs)
}

func (f *file) Close() error { return nil }

func (b *Backend) Mkdir(name string, perm sftpd.Perm) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = clean(name)
	if _, err := b.lookup(name); err == nil {
		return sftpd.Forbiddenf("%s already exists", name)
	}
	parent, err := b.resolve(filepath.Dir(name))
	if err != nil {
		return err
	}
	if !parent.isDir {
		return sftpd.NotFoundf("%s: parent is not a directory", name)
	}
	b.nodes[name] = &node{name: name, isDir: true, mode: os.FileMode(perm) & os.ModePerm, mtime: time.Now(), atime: time.Now()}
	return nil
}

func (b *Backend) Rmdir(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = clean(name)
	n, err := b.lookup(name)
	if err != nil {
		return err
	}
	if !n.isDir {
		return sftpd.NotFoundf("%s is not a directory", name)
	}
	for p := range b.nodes {
		if p != name && filepath.Dir(p) == name {
			return sftpd.Forbiddenf("%s is not empty", name)
		}
	}
	delete(b.nodes, name)
	return nil
}

func (b *Backend) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = clean(name)
	n, err := b.lookup(name)
	if err != nil {
		return err
	}
	if n.isDir {
		return sftpd.Forbiddenf("%s is a directory", name)
	}
	delete(b.nodes, name)
	return nil
}

func (b *Backend) Rename(oldName, newName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	oldName, newName = clean(oldName), clean(newName)
	n, err := b.lookup(oldName)
	if err != nil {
		return err
	}
	if _, err := b.lookup(newName); err == nil {
		return sftpd.Forbiddenf("%s already exists", newName)
	}
	prefix := oldName + "/"
	for p, existing := range b.nodes {
		if p == oldName {
			continue
		}
		if strings.HasPrefix(p, prefix) {
			b.nodes[newName+"/"+strings.TrimPrefix(p, prefix)] = existing
			delete(b.nodes, p)
		}
	}
	n.name = newName
	b.nodes[newName] = n
	delete(b.nodes, oldName)
	return nil
}

func (b *Backend) Symlink(linkName, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	linkName = clean(linkName)
	if _, err := b.lookup(linkName); err == nil {
		return sftpd.Forbiddenf("%s already exists", linkName)
	}
	b.nodes[linkName] = &node{name: linkName, symlink: clean(target), mode: 0o777, mtime: time.Now(), atime: time.Now()}
	return nil
}

func (b *Backend) Readlink(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup(clean(name))
	if err != nil {
		return "", err
	}
	if n.symlink == "" {
		return "", sftpd.NotFoundf("%s is not a symlink", name)
	}
	return n.symlink, nil
}
