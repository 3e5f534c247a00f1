package sftp

// Attribute-block encoding, per spec.md §3 and
// https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02#section-5

import (
	"os"
	"syscall"
	"time"
)

// Attribute block flags, spec.md §6.
type attrFlag uint32

const (
	attrSize attrFlag = 1 << iota
	attrUIDGID
	attrPermissions
	attrACModTime
)

const attrExtended attrFlag = 1 << 31

// Exported aliases of the attribute-block flags, for backends outside
// this package (chroot, memfs) that need to inspect which fields of an
// Attr are meaningful.
const (
	AttrFlagSize        = attrSize
	AttrFlagUIDGID       = attrUIDGID
	AttrFlagPermissions = attrPermissions
	AttrFlagACModTime   = attrACModTime
	AttrFlagExtended    = attrExtended
)

// Extension is one (name, data) pair of an SSH_FILEXFER_ATTR_EXTENDED
// block. This engine round-trips extensions but never interprets them.
type Extension struct {
	Name string
	Data string
}

// Attr is the Go-idiomatic form of an SFTPv3 attribute block. Only the
// fields named by Flags carry information; spec.md §3: "absent fields
// mean 'no information' on the way out and 'do not set' on the way in."
type Attr struct {
	Flags      attrFlag
	Size       uint64
	UID, GID   uint32
	Perms      os.FileMode
	ATime      time.Time
	MTime      time.Time
	Extensions []Extension
}

func (a *Attr) has(f attrFlag) bool { return a != nil && a.Flags&f != 0 }

// Has reports whether the given flag is set, for use by backends
// outside this package.
func (a *Attr) Has(f attrFlag) bool { return a.has(f) }

func readAttr(c *cursor) (*Attr, error) {
	flags, err := c.readUint32()
	if err != nil {
		return nil, err
	}
	a := &Attr{Flags: attrFlag(flags)}
	if a.has(attrSize) {
		if a.Size, err = c.readUint64(); err != nil {
			return nil, err
		}
	}
	if a.has(attrUIDGID) {
		if a.UID, err = c.readUint32(); err != nil {
			return nil, err
		}
		if a.GID, err = c.readUint32(); err != nil {
			return nil, err
		}
	}
	if a.has(attrPermissions) {
		mode, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		a.Perms = toFileMode(mode)
	}
	if a.has(attrACModTime) {
		atime, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		mtime, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		a.ATime = time.Unix(int64(atime), 0)
		a.MTime = time.Unix(int64(mtime), 0)
	}
	if a.has(attrExtended) {
		count, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		a.Extensions = make([]Extension, count)
		for i := range a.Extensions {
			name, err := c.readName()
			if err != nil {
				return nil, err
			}
			data, err := c.readName()
			if err != nil {
				return nil, err
			}
			a.Extensions[i] = Extension{Name: name, Data: data}
		}
	}
	return a, nil
}

func appendAttr(b []byte, a *Attr) []byte {
	if a == nil {
		return appendUint32(b, 0)
	}
	b = appendUint32(b, uint32(a.Flags))
	if a.has(attrSize) {
		b = appendUint64(b, a.Size)
	}
	if a.has(attrUIDGID) {
		b = appendUint32(b, a.UID)
		b = appendUint32(b, a.GID)
	}
	if a.has(attrPermissions) {
		b = appendUint32(b, fromFileMode(a.Perms))
	}
	if a.has(attrACModTime) {
		b = appendUint32(b, uint32(a.ATime.Unix()))
		b = appendUint32(b, uint32(a.MTime.Unix()))
	}
	if a.has(attrExtended) {
		b = appendUint32(b, uint32(len(a.Extensions)))
		for _, ext := range a.Extensions {
			b = appendString(b, ext.Name)
			b = appendString(b, ext.Data)
		}
	}
	return b
}

// AttrFromFileInfo builds a full attribute block (all four standard
// flags set) from an os.FileInfo, pulling uid/gid off the platform
// Stat_t when available. Exported so storage backends outside this
// package (chroot, memfs) can build attributes from os.FileInfo
// without duplicating the Stat_t plumbing.
func AttrFromFileInfo(fi os.FileInfo) *Attr {
	a := &Attr{
		Flags: attrSize | attrUIDGID | attrPermissions | attrACModTime,
		Size:  uint64(fi.Size()),
		Perms: fi.Mode(),
		ATime: fi.ModTime(),
		MTime: fi.ModTime(),
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		a.UID = st.Uid
		a.GID = st.Gid
		a.ATime = time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec))
	}
	return a
}

// toFileMode converts SFTPv3 permission/mode bits to os.FileMode.
func toFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(mode & 0777)
	switch mode & syscall.S_IFMT {
	case syscall.S_IFBLK:
		fm |= os.ModeDevice
	case syscall.S_IFCHR:
		fm |= os.ModeDevice | os.ModeCharDevice
	case syscall.S_IFDIR:
		fm |= os.ModeDir
	case syscall.S_IFIFO:
		fm |= os.ModeNamedPipe
	case syscall.S_IFLNK:
		fm |= os.ModeSymlink
	case syscall.S_IFSOCK:
		fm |= os.ModeSocket
	}
	if mode&syscall.S_ISGID != 0 {
		fm |= os.ModeSetgid
	}
	if mode&syscall.S_ISUID != 0 {
		fm |= os.ModeSetuid
	}
	if mode&syscall.S_ISVTX != 0 {
		fm |= os.ModeSticky
	}
	return fm
}

// fromFileMode converts os.FileMode to SFTPv3 permission/mode bits.
func fromFileMode(mode os.FileMode) uint32 {
	ret := uint32(0)
	switch {
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		ret |= syscall.S_IFCHR
	case mode&os.ModeDevice != 0:
		ret |= syscall.S_IFBLK
	case mode&os.ModeDir != 0:
		ret |= syscall.S_IFDIR
	case mode&os.ModeSymlink != 0:
		ret |= syscall.S_IFLNK
	case mode&os.ModeNamedPipe != 0:
		ret |= syscall.S_IFIFO
	case mode&os.ModeSocket != 0:
		ret |= syscall.S_IFSOCK
	case mode&os.ModeType == 0:
		ret |= syscall.S_IFREG
	}
	if mode&os.ModeSetgid != 0 {
		ret |= syscall.S_ISGID
	}
	if mode&os.ModeSetuid != 0 {
		ret |= syscall.S_ISUID
	}
	if mode&os.ModeSticky != 0 {
		ret |= syscall.S_ISVTX
	}
	ret |= uint32(mode & os.ModePerm)
	return ret
}
