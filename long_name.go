package sftp

// ls -l style rendering for NAME responses, per spec.md §4.4
// ("Clients such as FileZilla parse this string to build their
// directory view; deviation breaks them.") Column widths: 10, 3, 8, 8,
// 9, 12, then name — fixed, never locale- or year-sensitive.

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"
)

// modeString renders the 10-character "drwxr-xr-x" style prefix,
// including the set-uid/set-gid/sticky substitutions.
func modeString(mode os.FileMode) string {
	typeChar := byte('-')
	switch {
	case mode&os.ModeDir != 0:
		typeChar = 'd'
	case mode&os.ModeSymlink != 0:
		typeChar = 'l'
	case mode&os.ModeSocket != 0:
		typeChar = 's'
	case mode&os.ModeNamedPipe != 0:
		typeChar = 'p'
	case mode&os.ModeCharDevice != 0:
		typeChar = 'c'
	case mode&os.ModeDevice != 0:
		typeChar = 'b'
	}

	triplet := func(r, w, x bool, setBit bool, setChar, setCharNoExec byte) string {
		out := []byte{'-', '-', '-'}
		if r {
			out[0] = 'r'
		}
		if w {
			out[1] = 'w'
		}
		switch {
		case x && setBit:
			out[2] = setChar
		case setBit:
			out[2] = setCharNoExec
		case x:
			out[2] = 'x'
		}
		return string(out)
	}

	owner := triplet(mode&0400 != 0, mode&0200 != 0, mode&0100 != 0, mode&os.ModeSetuid != 0, 's', 'S')
	group := triplet(mode&0040 != 0, mode&0020 != 0, mode&0010 != 0, mode&os.ModeSetgid != 0, 's', 'S')
	other := triplet(mode&0004 != 0, mode&0002 != 0, mode&0001 != 0, mode&os.ModeSticky != 0, 't', 'T')

	return fmt.Sprintf("%c%s%s%s", typeChar, owner, group, other)
}

// userName and groupName resolve uid/gid to display names, falling
// back to the decimal id when the lookup fails (no nsswitch entry,
// running in a minimal container, etc).
func userName(uid uint32) string {
	id := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(id); err == nil {
		return u.Username
	}
	return id
}

func groupName(gid uint32) string {
	id := strconv.FormatUint(uint64(gid), 10)
	if g, err := user.LookupGroupId(id); err == nil {
		return g.Name
	}
	return id
}

// longName renders the full ls -l style line for a directory entry.
// numLinks defaults to 1; the storage contract does not surface link
// counts, matching spec.md §4.4's column layout exactly.
func longName(name string, a *Attr) string {
	uid, gid := "0", "0"
	var size uint64
	var mtime time.Time
	var mode os.FileMode
	if a != nil {
		if a.has(attrUIDGID) {
			uid, gid = userName(a.UID), groupName(a.GID)
		}
		if a.has(attrSize) {
			size = a.Size
		}
		if a.has(attrPermissions) {
			mode = a.Perms
		}
		if a.has(attrACModTime) {
			mtime = a.MTime
		}
	}

	date := mtime.UTC().Format("Jan _2 15:04")

	return fmt.Sprintf("%-10s %3d %-8s %-8s %9d %-12s %s",
		modeString(mode), 1, uid, gid, size, date, name)
}
