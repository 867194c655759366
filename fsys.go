package vpk

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Interface compliance.
var (
	_ fs.FS        = (*Directory)(nil)
	_ fs.StatFS    = (*Directory)(nil)
	_ fs.ReadDirFS = (*Directory)(nil)
)

// Open implements fs.FS.
//
// Open assembles the entry's full content and returns an fs.File reading
// from it. Directories are synthesized from entry paths since the format
// does not store them explicitly.
func (d *Directory) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := d.entries[name]; ok {
		content, err := d.readEntry(e, false)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &openFile{
			Reader: bytes.NewReader(content),
			info:   fileInfo{name: path.Base(name), entry: e},
		}, nil
	}

	if d.isDir(name) {
		return &openDir{d: d, name: name}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS without reading entry content.
func (d *Directory) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	if e, ok := d.entries[name]; ok {
		return fileInfo{name: path.Base(name), entry: e}, nil
	}
	if d.isDir(name) {
		return dirInfo(path.Base(name)), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir implements fs.ReadDirFS.
//
// Entries are sorted by name. Subdirectories are synthesized from entry
// paths.
func (d *Directory) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	entries := d.readDirEntries(name)
	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return entries, nil
}

// isDir reports whether name has entries under it. The root is always a
// directory.
func (d *Directory) isDir(name string) bool {
	if name == "." {
		return true
	}
	prefix := name + "/"
	for p := range d.entries {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// readDirEntries collects the immediate children of a directory, sorted by
// name.
func (d *Directory) readDirEntries(name string) []fs.DirEntry {
	prefix := ""
	if name != "." {
		prefix = name + "/"
	}

	seen := make(map[string]bool)
	var entries []fs.DirEntry //nolint:prealloc // size unknown until iteration
	for p, e := range d.entries {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			child := rest[:i]
			if !seen[child] {
				seen[child] = true
				entries = append(entries, fs.FileInfoToDirEntry(dirInfo(child)))
			}
			continue
		}
		if !seen[rest] {
			seen[rest] = true
			entries = append(entries, fs.FileInfoToDirEntry(fileInfo{name: rest, entry: e}))
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries
}

// openFile is an fs.File over an entry's assembled content.
type openFile struct {
	*bytes.Reader
	info fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *openFile) Close() error { return nil }

// fileInfo implements fs.FileInfo for an entry.
type fileInfo struct {
	name  string
	entry Entry
}

func (fi fileInfo) Name() string       { return fi.name }
func (fi fileInfo) Size() int64        { return fi.entry.TotalSize() }
func (fi fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi fileInfo) ModTime() time.Time { return time.Time{} }
func (fi fileInfo) IsDir() bool        { return false }
func (fi fileInfo) Sys() any           { return fi.entry }

// dirInfo implements fs.FileInfo for a synthesized directory.
type dirInfo string

func (di dirInfo) Name() string       { return string(di) }
func (di dirInfo) Size() int64        { return 0 }
func (di dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di dirInfo) ModTime() time.Time { return time.Time{} }
func (di dirInfo) IsDir() bool        { return true }
func (di dirInfo) Sys() any           { return nil }

// openDir implements fs.ReadDirFile for synthesized directories.
type openDir struct {
	d       *Directory
	name    string
	entries []fs.DirEntry
	offset  int
}

func (od *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: od.name, Err: fs.ErrInvalid}
}

func (od *openDir) Stat() (fs.FileInfo, error) {
	return dirInfo(path.Base(od.name)), nil
}

func (od *openDir) Close() error { return nil }

func (od *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if od.entries == nil {
		od.entries = od.d.readDirEntries(od.name)
	}

	rest := od.entries[od.offset:]
	if n <= 0 {
		od.offset = len(od.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	od.offset += n
	return rest[:n], nil
}
