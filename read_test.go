package vpk

import (
	"errors"
	"hash/crc32"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/vpk/internal/testutil"
)

// memArchive is an in-memory ArchiveFile that records closes.
type memArchive struct {
	data     []byte
	closed   bool
	closeErr error
}

func (a *memArchive) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(a.data)) {
		return 0, io.EOF
	}
	n := copy(p, a.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (a *memArchive) Close() error {
	a.closed = true
	return a.closeErr
}

// memOpener serves memArchives by index and counts opens.
type memOpener struct {
	mu       sync.Mutex
	archives map[uint16]*memArchive
	opens    map[uint16]int
}

func newMemOpener(archives map[uint16]*memArchive) *memOpener {
	return &memOpener{archives: archives, opens: make(map[uint16]int)}
}

func (o *memOpener) OpenArchive(index uint16) (ArchiveFile, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens[index]++
	a, ok := o.archives[index]
	if !ok {
		return nil, errors.New("no such archive")
	}
	return a, nil
}

func (o *memOpener) openCount(index uint16) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[index]
}

func parseDir(t *testing.T, dir testutil.Dir, opts ...Option) *Directory {
	t.Helper()
	d, err := Parse(dir.Build(), opts...)
	require.NoError(t, err)
	return d
}

func TestReadFilePreloadOnly(t *testing.T) {
	t.Parallel()

	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex, Preload: []byte("inline")},
	}})

	content, err := d.ReadFile("scripts/items.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), content)
}

func TestReadFileSelfContained(t *testing.T) {
	t.Parallel()

	residual := []byte("0123456789abcdef")
	d := parseDir(t, testutil.Dir{
		Version: 1,
		Files: []testutil.File{
			{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex, Offset: 4, Length: 6},
		},
		Residual: residual,
	})

	content, err := d.ReadFile("scripts/items.txt")
	require.NoError(t, err)
	assert.Equal(t, residual[4:10], content)
	assert.Empty(t, d.archives, "self-contained reads never touch the handle cache")
}

func TestReadFilePreloadPlusSelf(t *testing.T) {
	t.Parallel()

	d := parseDir(t, testutil.Dir{
		Version: 1,
		Files: []testutil.File{
			{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex,
				Offset: 0, Length: 5, Preload: []byte("head-")},
		},
		Residual: []byte("tail!"),
	})

	content, err := d.ReadFile("scripts/items.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("head-tail!"), content)
}

func TestReadFileFromArchive(t *testing.T) {
	t.Parallel()

	payload := []byte("archived content")
	opener := newMemOpener(map[uint16]*memArchive{
		3: {data: append([]byte("xxxx"), payload...)},
	})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "materials", Name: "wall", ArchiveIndex: 3,
			Offset: 4, Length: uint32(len(payload))},
	}}, WithOpener(opener))

	content, err := d.ReadFile("materials/wall.vtf")
	require.NoError(t, err)
	assert.Equal(t, payload, content)

	// Second read reuses the cached handle.
	_, err = d.ReadFile("materials/wall.vtf")
	require.NoError(t, err)
	assert.Equal(t, 1, opener.openCount(3))
}

func TestReadFileConcurrent(t *testing.T) {
	t.Parallel()

	payload := []byte("shared payload")
	opener := newMemOpener(map[uint16]*memArchive{
		0: {data: payload},
	})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "materials", Name: "wall", ArchiveIndex: 0, Length: uint32(len(payload))},
	}}, WithOpener(opener))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, err := d.ReadFile("materials/wall.vtf")
			assert.NoError(t, err)
			assert.Equal(t, payload, content)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opener.openCount(0), "concurrent first-opens collapse to one handle")
}

func TestReadFileNotFound(t *testing.T) {
	t.Parallel()

	opener := newMemOpener(nil)
	d := parseDir(t, testutil.Dir{Version: 1}, WithOpener(opener))

	_, err := d.ReadFile("missing/file.txt")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, d.archives, "a miss must not touch the handle cache")
	assert.Equal(t, 0, opener.openCount(0))
}

func TestReadFileNoOpener(t *testing.T) {
	t.Parallel()

	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "materials", Name: "wall", ArchiveIndex: 1, Length: 8},
	}})

	_, err := d.ReadFile("materials/wall.vtf")
	require.ErrorIs(t, err, ErrNoOpener)
}

func TestReadFileShortRead(t *testing.T) {
	t.Parallel()

	opener := newMemOpener(map[uint16]*memArchive{
		0: {data: []byte("short")},
	})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "materials", Name: "wall", ArchiveIndex: 0, Length: 100},
	}}, WithOpener(opener))

	_, err := d.ReadFile("materials/wall.vtf")
	require.ErrorIs(t, err, ErrShortRead)
}

func TestReadFileSelfRangeBeyondResidual(t *testing.T) {
	t.Parallel()

	d := parseDir(t, testutil.Dir{
		Version: 1,
		Files: []testutil.File{
			{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex, Offset: 2, Length: 8},
		},
		Residual: []byte("tiny"),
	})

	_, err := d.ReadFile("scripts/items.txt")
	require.ErrorIs(t, err, ErrShortRead)
}

func TestReadFileCRC(t *testing.T) {
	t.Parallel()

	content := []byte("preload+archive")
	d := parseDir(t, testutil.Dir{
		Version: 1,
		Files: []testutil.File{
			{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex,
				CRC: crc32.ChecksumIEEE(content), Offset: 0, Length: 7, Preload: content[:8]},
		},
		Residual: content[8:],
	})

	got, err := d.ReadFile("scripts/items.txt", ReadWithCRC())
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadFileCRCMismatch(t *testing.T) {
	t.Parallel()

	opener := newMemOpener(map[uint16]*memArchive{
		5: {data: []byte("corrupted bytes!")},
	})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "materials", Name: "wall", ArchiveIndex: 5,
			CRC: 0xDEADBEEF, Length: 16},
	}}, WithOpener(opener))

	_, err := d.ReadFile("materials/wall.vtf", ReadWithCRC())
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Contains(t, d.archives, uint16(5),
		"the handle stays cached after a validation failure")

	// Without validation the corrupt content is returned as-is.
	content, err := d.ReadFile("materials/wall.vtf")
	require.NoError(t, err)
	assert.Equal(t, []byte("corrupted bytes!"), content)
}

func TestReadFileNormalizesSeparators(t *testing.T) {
	t.Parallel()

	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "txt", Folder: "scripts", Name: "items", ArchiveIndex: SelfIndex, Preload: []byte("x")},
	}})

	content, err := d.ReadFile(`scripts\items.txt`)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), content)

	_, err = d.ReadFile("/scripts//items.txt")
	require.NoError(t, err)
}

func TestClose(t *testing.T) {
	t.Parallel()

	a0 := &memArchive{data: []byte("aaaa")}
	a1 := &memArchive{data: []byte("bbbb")}
	opener := newMemOpener(map[uint16]*memArchive{0: a0, 1: a1})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "m", Name: "a", ArchiveIndex: 0, Length: 4},
		{Ext: "vtf", Folder: "m", Name: "b", ArchiveIndex: 1, Length: 4},
	}}, WithOpener(opener))

	_, err := d.ReadFile("m/a.vtf")
	require.NoError(t, err)
	_, err = d.ReadFile("m/b.vtf")
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.True(t, a0.closed)
	assert.True(t, a1.closed)
	assert.Empty(t, d.archives)

	// Close after Close is a no-op.
	require.NoError(t, d.Close())
}

func TestCloseError(t *testing.T) {
	t.Parallel()

	a := &memArchive{data: []byte("aaaa"), closeErr: errors.New("device gone")}
	b := &memArchive{data: []byte("bbbb"), closeErr: errors.New("stale handle")}
	opener := newMemOpener(map[uint16]*memArchive{0: a, 1: b})
	d := parseDir(t, testutil.Dir{Version: 1, Files: []testutil.File{
		{Ext: "vtf", Folder: "m", Name: "a", ArchiveIndex: 0, Length: 4},
		{Ext: "vtf", Folder: "m", Name: "b", ArchiveIndex: 1, Offset: 0, Length: 4},
	}}, WithOpener(opener))

	_, err := d.ReadFile("m/a.vtf")
	require.NoError(t, err)
	_, err = d.ReadFile("m/b.vtf")
	require.NoError(t, err)

	// Every failing handle is reported, not just the first.
	err = d.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close archive 0")
	assert.Contains(t, err.Error(), "device gone")
	assert.Contains(t, err.Error(), "close archive 1")
	assert.Contains(t, err.Error(), "stale handle")
}
