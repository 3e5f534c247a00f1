package memfs

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sftpd "github.com/sftpgo-lite/sftpd"
)

func TestOpenCreateWriteReadAt(t *testing.T) {
	b := New()

	fh, err := b.Open("/a.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	n, err := fh.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, fh.Close())

	fh, err = b.Open("/a.txt", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer fh.Close()

	buf := make([]byte, 5)
	n, err = fh.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestOpenExclCollision(t *testing.T) {
	b := New()
	_, err := b.Open("/a.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	_, err = b.Open("/a.txt", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	assert.Error(t, err)
}

func TestOpenTruncTruncatesExistingContent(t *testing.T) {
	b := New()
	fh, _ := b.Open("/a.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	fh.WriteAt([]byte("0123456789"), 0)
	fh.Close()

	fh, err := b.Open("/a.txt", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	a, err := fh.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 0, a.Size)
}

func TestOpenRejectsOpeningADirectory(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/dir", 0o755))
	_, err := b.Open("/dir", os.O_RDONLY, 0)
	assert.Error(t, err)
}

func TestMkdirRmdirRoundTrip(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/dir", 0o755))
	require.Error(t, b.Mkdir("/dir", 0o755), "mkdir on an existing name should fail")

	require.NoError(t, b.Rmdir("/dir"))
	_, err := b.Stat("/dir", false)
	assert.Error(t, err)
}

func TestRmdirRefusesNonEmpty(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/dir", 0o755))
	_, err := b.Open("/dir/child.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	err = b.Rmdir("/dir")
	assert.Error(t, err)
}

func TestRenameMovesSubtree(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/dir", 0o755))
	_, err := b.Open("/dir/child.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	require.NoError(t, b.Rename("/dir", "/moved"))

	_, err = b.Stat("/dir", false)
	assert.Error(t, err, "old path should be gone")

	a, err := b.Stat("/moved/child.txt", false)
	require.NoError(t, err, "child should have moved with its parent")
	assert.True(t, a.Has(sftpd.AttrFlagSize))
}

func TestSymlinkResolvesThroughStat(t *testing.T) {
	b := New()
	_, err := b.Open("/target.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	require.NoError(t, b.Symlink("/link.txt", "/target.txt"))

	target, err := b.Readlink("/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/target.txt", target)

	lstatAttr, err := b.Stat("/link.txt", true)
	require.NoError(t, err)
	assert.NotZero(t, lstatAttr.Perms&os.ModeSymlink)

	statAttr, err := b.Stat("/link.txt", false)
	require.NoError(t, err)
	assert.Zero(t, statAttr.Perms&os.ModeSymlink, "Stat should resolve through the symlink")
}

func TestDirectoryListingIncludesDotEntries(t *testing.T) {
	b := New()
	require.NoError(t, b.Mkdir("/dir", 0o755))
	_, err := b.Open("/dir/child.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	it, err := b.OpenDir("/dir")
	require.NoError(t, err)
	defer it.Close()

	seen := map[string]bool{}
	for {
		e, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen[e.Name] = true
	}
	assert.True(t, seen["."])
	assert.True(t, seen[".."])
	assert.True(t, seen["child.txt"])
}

func TestSetstatAppliesAllFields(t *testing.T) {
	b := New()
	_, err := b.Open("/a.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)

	err = b.Setstat("/a.txt", &sftpd.Attr{
		Flags: sftpd.AttrFlagSize | sftpd.AttrFlagUIDGID | sftpd.AttrFlagPermissions,
		Size:  3,
		UID:   42,
		GID:   7,
		Perms: 0o600,
	})
	require.NoError(t, err)

	a, err := b.Stat("/a.txt", false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, a.Size)
	assert.EqualValues(t, 42, a.UID)
	assert.EqualValues(t, 7, a.GID)
	assert.Equal(t, os.FileMode(0o600), a.Perms&os.ModePerm)
}
