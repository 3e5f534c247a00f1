package sftp

// Dispatch-level tests exercising the concrete scenarios spec.md §8
// enumerates, driven through Session.Process with raw framed bytes --
// the same black-box approach original_source/pysftpserver/tests
// takes against the Python server.

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testBackend is a minimal Backend over a temp directory, just enough
// surface for dispatch tests. Its Verify resolves relative names
// against the root and refuses any name outside it, without following
// symlinks; sftp/chroot.Backend and sftp/memfs.Backend cover the full
// containment and in-memory cases.
type testBackend struct {
	root string
}

func newTestBackend(t *testing.T) *testBackend {
	return &testBackend{root: t.TempDir()}
}

func (b *testBackend) path(name string) string { return filepath.Join(b.root, name) }

func (b *testBackend) Verify(name string) (string, error) {
	full := filepath.Clean(name)
	if !filepath.IsAbs(full) {
		full = filepath.Join(b.root, name)
	}
	if full != b.root && !hasPrefixDir(full, b.root) {
		return "", ErrForbidden
	}
	return full, nil
}

func hasPrefixDir(p, dir string) bool {
	return len(p) > len(dir) && p[:len(dir)] == dir && p[len(dir)] == filepath.Separator
}

func (b *testBackend) Stat(name string, lstat bool) (*Attr, error) {
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
	return AttrFromFileInfo(fi), nil
}

func (b *testBackend) Setstat(name string, attrs *Attr) error {
	if attrs.has(attrSize) {
		if err := os.Truncate(name, int64(attrs.Size)); err != nil {
			return err
		}
	}
	if attrs.has(attrPermissions) {
		if err := os.Chmod(name, attrs.Perms); err != nil {
			return err
		}
	}
	if attrs.has(attrACModTime) {
		if err := os.Chtimes(name, attrs.ATime, attrs.MTime); err != nil {
			return err
		}
	}
	return nil
}

type testDir struct {
	entries []DirEntry
	i       int
}

func (d *testDir) Next() (DirEntry, error) {
	if d.i >= len(d.entries) {
		return DirEntry{}, io.EOF
	}
	e := d.entries[d.i]
	d.i++
	return e, nil
}
func (d *testDir) Close() error { return nil }

func (b *testBackend) OpenDir(name string) (DirIter, error) {
	names, err := os.ReadDir(name)
	if err != nil {
		return nil, err
	}
	entries := []DirEntry{{Name: "."}, {Name: ".."}}
	for _, n := range names {
		entries = append(entries, DirEntry{Name: n.Name()})
	}
	return &testDir{entries: entries}, nil
}

type testFile struct{ f *os.File }

func (f *testFile) ReadAt(p []byte, off int64) (int, error)  { return f.f.ReadAt(p, off) }
func (f *testFile) WriteAt(p []byte, off int64) (int, error) { return f.f.WriteAt(p, off) }
func (f *testFile) Close() error                             { return f.f.Close() }
func (f *testFile) Stat() (*Attr, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return nil, err
	}
	return AttrFromFileInfo(fi), nil
}
func (f *testFile) Setstat(attrs *Attr) error { return nil }

func (b *testBackend) Open(name string, flags int, perm Perm) (FileHandle, error) {
	f, err := os.OpenFile(name, flags, os.FileMode(perm))
	if err != nil {
		return nil, err
	}
	return &testFile{f: f}, nil
}

func (b *testBackend) Mkdir(name string, perm Perm) error { return os.Mkdir(name, os.FileMode(perm)) }
func (b *testBackend) Rmdir(name string) error            { return os.Remove(name) }
func (b *testBackend) Remove(name string) error           { return os.Remove(name) }
func (b *testBackend) Rename(oldName, newName string) error {
	return os.Rename(oldName, newName)
}
func (b *testBackend) Symlink(linkName, target string) error { return os.Symlink(target, linkName) }
func (b *testBackend) Readlink(name string) (string, error)  { return os.Readlink(name) }

// --- test harness ---

func newTestSession(backend Backend) (*Session, *bytes.Buffer) {
	out := &bytes.Buffer{}
	s := NewSession(nil, out, backend)
	return s, out
}

func feed(t *testing.T, s *Session, opcode byte, id uint32, payload []byte) {
	t.Helper()
	msg := append([]byte{opcode}, appendUint32(nil, id)...)
	msg = append(msg, payload...)
	s.in = append(s.in, frame(msg)...)
	if err := s.Process(); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

// nextResponse pops the next complete frame off out and returns its
// opcode and unframed payload (request id included).
func nextResponse(t *testing.T, out *bytes.Buffer) (byte, []byte) {
	t.Helper()
	b := out.Bytes()
	if len(b) < 5 {
		t.Fatalf("short response buffer: %d bytes", len(b))
	}
	c := newCursor(b)
	length, _ := c.readUint32()
	payload := b[4 : 4+length]
	out.Next(int(4 + length))
	return payload[0], payload[1:]
}

func TestScenarioInit(t *testing.T) {
	s, out := newTestSession(newTestBackend(t))
	feed(t, s, fxpInit, 0, nil)
	opcode, payload := nextResponse(t, out)
	if opcode != fxpVersion {
		t.Fatalf("opcode: got %d, want fxpVersion", opcode)
	}
	if !bytes.Equal(payload, []byte{0, 0, 0, 3}) {
		t.Fatalf("VERSION payload: got %v, want [0 0 0 3]", payload)
	}
}

func TestScenarioCreateWriteReadVerify(t *testing.T) {
	backend := newTestBackend(t)
	s, out := newTestSession(backend)
	content := []byte("nntp 119/tcp\nssh 22/tcp\n")

	openAttrs := &Attr{Flags: attrPermissions, Perms: 0o644}
	feed(t, s, fxpOpen, 1, append(appendString(nil, "services"),
		append(appendUint32(nil, uint32(sshfxfCreat|sshfxfWrite|sshfxfRead)), appendAttr(nil, openAttrs)...)...))
	opcode, payload := nextResponse(t, out)
	if opcode != fxpHandle {
		t.Fatalf("OPEN: opcode %d, want fxpHandle", opcode)
	}
	handle, _ := newCursor(payload[4:]).readName()

	writeReq := append(appendString(nil, handle), appendUint64(nil, 0)...)
	writeReq = appendBytes(writeReq, content)
	feed(t, s, fxpWrite, 2, writeReq)
	opcode, payload = nextResponse(t, out)
	assertStatus(t, opcode, payload, fxOK)

	readReq := append(appendString(nil, handle), appendUint64(nil, 0)...)
	readReq = appendUint32(readReq, uint32(len(content)))
	feed(t, s, fxpRead, 3, readReq)
	opcode, payload = nextResponse(t, out)
	if opcode != fxpData {
		t.Fatalf("READ: opcode %d, want fxpData", opcode)
	}
	got, _ := newCursor(payload[4:]).readString()
	if !bytes.Equal(got, content) {
		t.Fatalf("READ: got %q, want %q", got, content)
	}

	readReq = append(appendString(nil, handle), appendUint64(nil, uint64(len(content)))...)
	readReq = appendUint32(readReq, 1)
	feed(t, s, fxpRead, 4, readReq)
	opcode, payload = nextResponse(t, out)
	assertStatus(t, opcode, payload, fxEOF)

	feed(t, s, fxpClose, 5, appendString(nil, handle))
	opcode, payload = nextResponse(t, out)
	assertStatus(t, opcode, payload, fxOK)

	fi, err := os.Stat(backend.path("services"))
	if err != nil {
		t.Fatalf("stat on disk: %v", err)
	}
	if fi.Mode().Perm() != 0o644 {
		t.Errorf("on-disk mode: got %o, want 0644", fi.Mode().Perm())
	}
	if fi.Size() != int64(len(content)) {
		t.Errorf("on-disk size: got %d, want %d", fi.Size(), len(content))
	}
}

func TestScenarioSetstat(t *testing.T) {
	backend := newTestBackend(t)
	if err := os.WriteFile(backend.path("services"), []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, out := newTestSession(backend)

	atime := time.Unix(1415626110, 0)
	mtime := time.Unix(1415626120, 0)
	attrs := &Attr{
		Flags: attrSize | attrPermissions | attrACModTime,
		Size:  100,
		Perms: 0o600,
		ATime: atime,
		MTime: mtime,
	}
	feed(t, s, fxpSetstat, 1, append(appendString(nil, "services"), appendAttr(nil, attrs)...))
	opcode, payload := nextResponse(t, out)
	assertStatus(t, opcode, payload, fxOK)

	fi, err := os.Stat(backend.path("services"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 100 {
		t.Errorf("size: got %d, want 100", fi.Size())
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("mode: got %o, want 0600", fi.Mode().Perm())
	}
	if !fi.ModTime().Equal(mtime) {
		t.Errorf("mtime: got %v, want %v", fi.ModTime(), mtime)
	}
}

func TestScenarioDirectoryListing(t *testing.T) {
	backend := newTestBackend(t)
	if err := os.Mkdir(backend.path("foo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(backend.path("foo/bar"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s, out := newTestSession(backend)

	feed(t, s, fxpOpendir, 1, appendString(nil, "foo"))
	opcode, payload := nextResponse(t, out)
	if opcode != fxpHandle {
		t.Fatalf("OPENDIR: opcode %d, want fxpHandle", opcode)
	}
	handle, _ := newCursor(payload[4:]).readName()

	seen := map[string]bool{}
	for {
		feed(t, s, fxpReaddir, 2, appendString(nil, handle))
		opcode, payload = nextResponse(t, out)
		if opcode == fxpStatus {
			assertStatus(t, opcode, payload, fxEOF)
			break
		}
		if opcode != fxpName {
			t.Fatalf("READDIR: opcode %d, want fxpName or fxpStatus", opcode)
		}
		c := newCursor(payload[4:])
		count, _ := c.readUint32()
		for i := uint32(0); i < count; i++ {
			name, _ := c.readName()
			_, _ = c.readName() // long name
			_, _ = readAttr(c)
			seen[name] = true
		}
	}
	want := map[string]bool{".": true, "..": true, "bar": true}
	if len(seen) != len(want) {
		t.Fatalf("READDIR names: got %v, want %v", seen, want)
	}
	for n := range want {
		if !seen[n] {
			t.Errorf("READDIR missing name %q", n)
		}
	}
}

func TestScenarioJailEscapeRejected(t *testing.T) {
	backend := newTestBackend(t)
	s, out := newTestSession(backend)

	feed(t, s, fxpMkdir, 1, append(appendString(nil, "../foo"), appendAttr(nil, &Attr{})...))
	opcode, payload := nextResponse(t, out)
	assertStatus(t, opcode, payload, fxPermissionDenied)

	feed(t, s, fxpOpen, 2, append(appendString(nil, "/etc/services"),
		append(appendUint32(nil, uint32(sshfxfCreat)), appendAttr(nil, &Attr{})...)...))
	opcode, payload = nextResponse(t, out)
	assertStatus(t, opcode, payload, fxPermissionDenied)
}

func TestScenarioExclusiveCreateCollision(t *testing.T) {
	backend := newTestBackend(t)
	s, out := newTestSession(backend)

	open := func(id uint32, flags openFlag) (byte, []byte) {
		feed(t, s, fxpOpen, id, append(appendString(nil, "services"),
			append(appendUint32(nil, uint32(flags)), appendAttr(nil, &Attr{Flags: attrPermissions, Perms: 0o644})...)...))
		return nextResponse(t, out)
	}

	opcode, payload := open(1, sshfxfCreat|sshfxfWrite)
	if opcode != fxpHandle {
		t.Fatalf("first OPEN: opcode %d, want fxpHandle", opcode)
	}
	handle, _ := newCursor(payload[4:]).readName()
	feed(t, s, fxpClose, 2, appendString(nil, handle))
	nextResponse(t, out)

	opcode, payload = open(3, sshfxfCreat|sshfxfExcl|sshfxfWrite)
	assertStatus(t, opcode, payload, fxFailure)
}

func assertStatus(t *testing.T, opcode byte, payload []byte, want uint32) {
	t.Helper()
	if opcode != fxpStatus {
		t.Fatalf("opcode: got %d, want fxpStatus", opcode)
	}
	code, err := newCursor(payload[4:]).readUint32()
	if err != nil {
		t.Fatalf("decode status code: %v", err)
	}
	if code != want {
		t.Fatalf("status code: got %d, want %d", code, want)
	}
}
