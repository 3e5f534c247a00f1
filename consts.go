package sftp

// SFTPv3 opcodes, as sent in the first byte of a framed message payload.
// https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02
const (
	fxpInit     = 1
	fxpVersion  = 2
	fxpOpen     = 3
	fxpClose    = 4
	fxpRead     = 5
	fxpWrite    = 6
	fxpLstat    = 7
	fxpFstat    = 8
	fxpSetstat  = 9
	fxpFsetstat = 10
	fxpOpendir  = 11
	fxpReaddir  = 12
	fxpRemove   = 13
	fxpMkdir    = 14
	fxpRmdir    = 15
	fxpRealpath = 16
	fxpStat     = 17
	fxpRename   = 18
	fxpReadlink = 19
	fxpSymlink  = 20

	fxpStatus   = 101
	fxpHandle   = 102
	fxpData     = 103
	fxpName     = 104
	fxpAttrs    = 105
	fxpExtended = 200
)

// ProtocolVersion is the SFTP version this engine speaks.
const ProtocolVersion = 3

// Status codes carried by SSH_FXP_STATUS. Only the subset spec.md §6
// names is used by this engine; the wider draft-13 table is not
// implemented (not needed by any SFTPv3 client).
const (
	fxOK               = 0
	fxEOF              = 1
	fxNoSuchFile       = 2
	fxPermissionDenied = 3
	fxFailure          = 4
	fxOpUnsupported    = 8
)

// Open flags, as carried on SSH_FXP_OPEN.
type openFlag uint32

const (
	sshfxfRead openFlag = 1 << iota
	sshfxfWrite
	sshfxfAppend
	sshfxfCreat
	sshfxfTrunc
	sshfxfExcl
)

// Attribute block flags are defined in attrs.go alongside the Attr type
// they gate.
