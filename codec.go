package sftp

import "github.com/pkg/errors"

// errMalformed is the fatal decode error spec.md §4.1 and §7 describe:
// the framer and the decoder have disagreed about message boundaries.
var errMalformed = errors.New("sftp: malformed frame")

// cursor reads big-endian scalars out of a payload slice, advancing as
// it goes. It never panics on short input; every read method reports
// errMalformed instead, per spec.md §4.1 ("this should be treated as a
// fatal session error").
type cursor struct {
	b []byte
}

func newCursor(b []byte) *cursor { return &cursor{b: b} }

func (c *cursor) remaining() int { return len(c.b) }

func (c *cursor) readUint32() (uint32, error) {
	if len(c.b) < 4 {
		return 0, errMalformed
	}
	v := uint32(c.b[0])<<24 | uint32(c.b[1])<<16 | uint32(c.b[2])<<8 | uint32(c.b[3])
	c.b = c.b[4:]
	return v, nil
}

func (c *cursor) readUint64() (uint64, error) {
	if len(c.b) < 8 {
		return 0, errMalformed
	}
	v := uint64(c.b[0])<<56 | uint64(c.b[1])<<48 | uint64(c.b[2])<<40 | uint64(c.b[3])<<32 |
		uint64(c.b[4])<<24 | uint64(c.b[5])<<16 | uint64(c.b[6])<<8 | uint64(c.b[7])
	c.b = c.b[8:]
	return v, nil
}

func (c *cursor) readByte() (byte, error) {
	if len(c.b) < 1 {
		return 0, errMalformed
	}
	v := c.b[0]
	c.b = c.b[1:]
	return v, nil
}

// readString returns a copy of the bytes; the caller must not assume
// they remain valid after the input buffer is reused. Names are
// arbitrary byte strings, never assumed UTF-8.
func (c *cursor) readString() ([]byte, error) {
	n, err := c.readUint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(len(c.b)) {
		return nil, errMalformed
	}
	s := make([]byte, n)
	copy(s, c.b[:n])
	c.b = c.b[n:]
	return s, nil
}

func (c *cursor) readName() (string, error) {
	s, err := c.readString()
	return string(s), err
}

// --- encoding side: pure append functions, never truncate ---

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(b []byte, v uint64) []byte {
	return appendUint32(appendUint32(b, uint32(v>>32)), uint32(v))
}

func appendString(b []byte, s string) []byte {
	return append(appendUint32(b, uint32(len(s))), s...)
}

func appendBytes(b []byte, s []byte) []byte {
	return append(appendUint32(b, uint32(len(s))), s...)
}

// frame prefixes msg with its own big-endian length, per spec.md §3
// ("a 32-bit big-endian length followed by that many payload bytes").
func frame(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+4)
	return append(appendUint32(out, uint32(len(msg))), msg...)
}
