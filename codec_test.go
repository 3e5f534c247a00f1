package sftp

import (
	"bytes"
	"testing"
)

var appendUint32Tests = []struct {
	v    uint32
	want []byte
}{
	{1, []byte{0, 0, 0, 1}},
	{256, []byte{0, 0, 1, 0}},
	{^uint32(0), []byte{255, 255, 255, 255}},
}

func TestAppendUint32(t *testing.T) {
	for _, tt := range appendUint32Tests {
		got := appendUint32(nil, tt.v)
		if !bytes.Equal(tt.want, got) {
			t.Errorf("appendUint32(%d): want %v, got %v", tt.v, tt.want, got)
		}
	}
}

var appendUint64Tests = []struct {
	v    uint64
	want []byte
}{
	{1, []byte{0, 0, 0, 0, 0, 0, 0, 1}},
	{1 << 32, []byte{0, 0, 0, 1, 0, 0, 0, 0}},
	{^uint64(0), []byte{255, 255, 255, 255, 255, 255, 255, 255}},
}

func TestAppendUint64(t *testing.T) {
	for _, tt := range appendUint64Tests {
		got := appendUint64(nil, tt.v)
		if !bytes.Equal(tt.want, got) {
			t.Errorf("appendUint64(%d): want %v, got %v", tt.v, tt.want, got)
		}
	}
}

func TestAppendString(t *testing.T) {
	got := appendString(nil, "/foo")
	want := []byte{0, 0, 0, 4, '/', 'f', 'o', 'o'}
	if !bytes.Equal(got, want) {
		t.Errorf("appendString: want %v, got %v", want, got)
	}
	if got := appendString(nil, ""); !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("appendString(\"\"): want length-0 prefix, got %v", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	b := appendUint32(nil, 7)
	b = appendUint64(b, 1<<40)
	b = appendString(b, "handle-1")

	c := newCursor(b)
	if v, err := c.readUint32(); err != nil || v != 7 {
		t.Fatalf("readUint32: got (%d, %v), want (7, nil)", v, err)
	}
	if v, err := c.readUint64(); err != nil || v != 1<<40 {
		t.Fatalf("readUint64: got (%d, %v), want (%d, nil)", v, err, uint64(1)<<40)
	}
	if s, err := c.readName(); err != nil || s != "handle-1" {
		t.Fatalf("readName: got (%q, %v), want (\"handle-1\", nil)", s, err)
	}
	if c.remaining() != 0 {
		t.Fatalf("remaining: got %d, want 0", c.remaining())
	}
}

func TestCursorShortReadIsMalformed(t *testing.T) {
	c := newCursor([]byte{0, 0})
	if _, err := c.readUint32(); err != errMalformed {
		t.Fatalf("readUint32 on short input: got %v, want errMalformed", err)
	}

	c = newCursor([]byte{0, 0, 0, 5, 'a'}) // claims 5 bytes, has 1
	if _, err := c.readString(); err != errMalformed {
		t.Fatalf("readString with truncated body: got %v, want errMalformed", err)
	}
}

func TestFrame(t *testing.T) {
	msg := []byte{fxpVersion, 0, 0, 0, 3}
	got := frame(msg)
	want := append(appendUint32(nil, uint32(len(msg))), msg...)
	if !bytes.Equal(got, want) {
		t.Errorf("frame: want %v, got %v", want, got)
	}
}
