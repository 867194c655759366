package vpk

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/vpk/internal/cursor"
)

// Signature is the magic value at the start of every VPK directory file.
const Signature = 0x55AA1234

const (
	headerSizeV1 = 12
	headerSizeV2 = 28

	// entryTerminator closes every entry record in the tree.
	entryTerminator = 0xFFFF
)

// Header holds the version-dependent fields of a directory file header.
//
// The section sizes are only populated for version 2 directories.
type Header struct {
	Version  uint32
	TreeSize uint32

	FileDataSectionSize   uint32
	ArchiveMD5SectionSize uint32
	OtherMD5SectionSize   uint32
	SignatureSectionSize  uint32
}

// size returns the encoded header length for this version.
func (h Header) size() int {
	if h.Version == 2 {
		return headerSizeV2
	}
	return headerSizeV1
}

// Directory provides access to the entries of a parsed VPK directory file.
//
// The entry table and residual data are built once by Parse and are
// immutable afterward. Sibling archive handles are opened lazily on first
// read and cached until Close.
type Directory struct {
	header  Header
	entries map[string]Entry
	data    []byte // residual bytes after header and tree

	chunks    []ChunkChecksum
	declared  trailerSums
	actual    trailerSums
	signature []byte

	opener ArchiveOpener
	logger *slog.Logger

	mu       sync.Mutex
	archives map[uint16]ArchiveFile
	group    singleflight.Group // deduplicates first-open per archive index
}

// log returns the logger, falling back to a discard logger if nil.
func (d *Directory) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// Parse reads a VPK directory file from data.
//
// The buffer is retained, not copied; callers must not modify it while the
// Directory is in use. Parsing is all-or-nothing: any error aborts with no
// partial directory.
func Parse(data []byte, opts ...Option) (*Directory, error) {
	d := &Directory{
		entries:  make(map[string]Entry),
		archives: make(map[uint16]ArchiveFile),
	}
	for _, opt := range opts {
		opt(d)
	}

	c := cursor.New(data)

	magic, err := c.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}
	if magic != Signature {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadSignature, magic)
	}

	if d.header.Version, err = c.Uint32(); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if d.header.Version != 1 && d.header.Version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.header.Version)
	}
	if d.header.TreeSize, err = c.Uint32(); err != nil {
		return nil, fmt.Errorf("read tree size: %w", err)
	}

	if d.header.Version == 2 {
		if err := d.parseSectionSizes(c); err != nil {
			return nil, err
		}
	}

	if err := d.parseTree(c); err != nil {
		return nil, err
	}

	dataOffset := d.header.size() + int(d.header.TreeSize)
	if dataOffset > len(data) {
		return nil, fmt.Errorf("data offset %d beyond directory file of %d bytes: %w",
			dataOffset, len(data), ErrOutOfBounds)
	}
	// The tree can run past its declared size (the terminator of an empty
	// tree already does); bytes the tree parse consumed are never served as
	// content.
	start := dataOffset
	if p := min(c.Pos(), len(data)); p > start {
		start = p
	}
	d.data = data[start:]

	if d.header.Version == 2 {
		if err := d.parseTrailer(data[d.header.size():dataOffset]); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// parseSectionSizes reads the four v2 section-size fields.
func (d *Directory) parseSectionSizes(c *cursor.Cursor) error {
	var err error
	if d.header.FileDataSectionSize, err = c.Uint32(); err != nil {
		return fmt.Errorf("read file-data section size: %w", err)
	}
	if d.header.ArchiveMD5SectionSize, err = c.Uint32(); err != nil {
		return fmt.Errorf("read archive-MD5 section size: %w", err)
	}
	if d.header.OtherMD5SectionSize, err = c.Uint32(); err != nil {
		return fmt.Errorf("read other-MD5 section size: %w", err)
	}
	if d.header.SignatureSectionSize, err = c.Uint32(); err != nil {
		return fmt.Errorf("read signature section size: %w", err)
	}
	if d.header.OtherMD5SectionSize != otherMD5SectionSize {
		return fmt.Errorf("%w: other-MD5 section size %d", ErrInvalidHeader, d.header.OtherMD5SectionSize)
	}
	return nil
}

// parseTree walks the three nested levels of the index. Each level is
// terminated by an empty string; an empty segment inside a path is stored
// as a single space.
func (d *Directory) parseTree(c *cursor.Cursor) error {
	for {
		ext := c.NullString()
		if ext == "" {
			break
		}
		for {
			folder := c.NullString()
			if folder == "" {
				break
			}
			for {
				name := c.NullString()
				if name == "" {
					break
				}
				e, err := parseEntry(c, blankSegment(ext), blankSegment(folder), blankSegment(name))
				if err != nil {
					return err
				}
				// Later duplicates overwrite earlier entries.
				d.entries[e.Path()] = e
			}
		}
	}
	return nil
}

// blankSegment decodes the single-space encoding of an empty tree segment.
func blankSegment(s string) string {
	if s == " " {
		return ""
	}
	return s
}

// parseEntry reads one entry record plus its optional preload payload.
func parseEntry(c *cursor.Cursor, ext, folder, name string) (Entry, error) {
	e := Entry{Extension: ext, Folder: folder, Name: name}

	var err error
	if e.CRC, err = c.Uint32(); err != nil {
		return Entry{}, fmt.Errorf("entry %s: read crc: %w", e.Path(), err)
	}
	if e.PreloadBytes, err = c.Uint16(); err != nil {
		return Entry{}, fmt.Errorf("entry %s: read preload size: %w", e.Path(), err)
	}
	if e.ArchiveIndex, err = c.Uint16(); err != nil {
		return Entry{}, fmt.Errorf("entry %s: read archive index: %w", e.Path(), err)
	}
	if e.Offset, err = c.Uint32(); err != nil {
		return Entry{}, fmt.Errorf("entry %s: read offset: %w", e.Path(), err)
	}
	if e.Length, err = c.Uint32(); err != nil {
		return Entry{}, fmt.Errorf("entry %s: read length: %w", e.Path(), err)
	}

	term, err := c.Uint16()
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: read terminator: %w", e.Path(), err)
	}
	if term != entryTerminator {
		return Entry{}, fmt.Errorf("entry %s: %w: 0x%04X", e.Path(), ErrBadTerminator, term)
	}

	if e.PreloadBytes > 0 {
		if e.Preload, err = c.Bytes(int(e.PreloadBytes)); err != nil {
			return Entry{}, fmt.Errorf("entry %s: read preload: %w", e.Path(), err)
		}
	}
	return e, nil
}

// Header returns the parsed directory header.
func (d *Directory) Header() Header {
	return d.header
}

// Version returns the directory format version, 1 or 2.
func (d *Directory) Version() uint32 {
	return d.header.Version
}

// Entry returns the entry for the given path after normalization.
func (d *Directory) Entry(name string) (Entry, bool) {
	e, ok := d.entries[NormalizePath(name)]
	return e, ok
}

// Len returns the number of entries in the directory.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Entries returns an iterator over all entries, in unspecified order.
func (d *Directory) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range d.entries {
			if !yield(e) {
				return
			}
		}
	}
}
