package sftp

import "os"

// osFlags maps SFTPv3 open flags to os.OpenFile flags, per spec.md
// §4.3. TRUNC and EXCL only take effect alongside CREAT.
func (f openFlag) osFlags() int {
	var out int
	switch {
	case f&sshfxfRead != 0 && f&sshfxfWrite != 0:
		out |= os.O_RDWR
	case f&sshfxfWrite != 0:
		out |= os.O_WRONLY
	default:
		out |= os.O_RDONLY
	}
	if f&sshfxfAppend != 0 {
		out |= os.O_APPEND
	}
	if f&sshfxfCreat != 0 {
		out |= os.O_CREATE
		if f&sshfxfTrunc != 0 {
			out |= os.O_TRUNC
		}
		if f&sshfxfExcl != 0 {
			out |= os.O_EXCL
		}
	}
	return out
}

// defaultCreateMode is applied when CREAT is set and the request
// carries no PERMISSIONS attribute, subject to the process umask.
const defaultCreateMode Perm = 0o666

// defaultMkdirMode is applied when MKDIR carries no PERMISSIONS attribute.
const defaultMkdirMode Perm = 0o777
