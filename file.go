package vpk

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ArchiveFile is a random-access handle to one sibling archive.
//
// *os.File implements it directly.
type ArchiveFile interface {
	io.ReaderAt
	io.Closer
}

// ArchiveOpener opens the numbered sibling archive for an index.
//
// Implementations exist for files on disk (NewSiblingOpener); tests and
// embedded deployments can supply their own.
type ArchiveOpener interface {
	OpenArchive(index uint16) (ArchiveFile, error)
}

// siblingOpener opens `<base>_NNN.vpk` files next to the directory file.
type siblingOpener struct {
	base string
}

// NewSiblingOpener returns an opener for the numbered archives belonging to
// a `<base>_dir.vpk` directory file. The index is zero-padded to three
// digits: base "pak01" and index 3 open "pak01_003.vpk".
func NewSiblingOpener(base string) ArchiveOpener {
	return &siblingOpener{base: base}
}

// OpenArchive opens the archive file for the given index.
func (o *siblingOpener) OpenArchive(index uint16) (ArchiveFile, error) {
	name := fmt.Sprintf("%s_%03d.vpk", o.base, index)
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", name, err)
	}
	return f, nil
}

// Open reads a directory file from disk and parses it.
//
// When path ends in `_dir.vpk`, a sibling opener is configured so entries
// stored in `_NNN.vpk` archives can be read. An opener passed via WithOpener
// takes precedence. Close releases every archive handle opened through the
// returned Directory.
func Open(path string, opts ...Option) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	if base, ok := strings.CutSuffix(path, "_dir.vpk"); ok {
		opts = append([]Option{WithOpener(NewSiblingOpener(base))}, opts...)
	}
	return Parse(data, opts...)
}
