package vpk

import (
	"crypto/md5" //nolint:gosec // MD5 is the checksum the VPK v2 format stores
	"fmt"

	"github.com/meigma/vpk/internal/cursor"
)

const (
	// otherMD5SectionSize is the only valid size for the v2 other-MD5 section.
	otherMD5SectionSize = 48

	// chunkChecksumSize is the encoded size of one archive-MD5 record.
	chunkChecksumSize = 28
)

// ChunkChecksum describes one checksummed span of archive content from the
// v2 archive-MD5 section.
type ChunkChecksum struct {
	// ArchiveIndex names the archive holding the span; SelfIndex means the
	// directory file's own data region.
	ArchiveIndex uint32
	Offset       uint32
	Length       uint32
	Sum          [md5.Size]byte
}

// trailerSums holds the tree and archive-MD5-section checksums from the v2
// other-MD5 section. The third stored sum covers the whole directory file
// and is not tracked here.
type trailerSums struct {
	tree         [md5.Size]byte
	chunkSection [md5.Size]byte
}

// parseTrailer decodes the v2 sections that follow the file data region:
// the archive-MD5 records, the other-MD5 sums, and the opaque signature
// section. treeBytes is the encoded tree, checksummed for later VerifyTree.
func (d *Directory) parseTrailer(treeBytes []byte) error {
	start := int(d.header.FileDataSectionSize)
	chunkLen := int(d.header.ArchiveMD5SectionSize)
	sigLen := int(d.header.SignatureSectionSize)

	end := start + chunkLen + otherMD5SectionSize + sigLen
	if start > len(d.data) || end > len(d.data) {
		return fmt.Errorf("trailer sections %d..%d beyond %d residual bytes: %w",
			start, end, len(d.data), ErrOutOfBounds)
	}
	if chunkLen%chunkChecksumSize != 0 {
		return fmt.Errorf("%w: archive-MD5 section size %d", ErrInvalidHeader, chunkLen)
	}

	c := cursor.New(d.data[start:end])
	d.chunks = make([]ChunkChecksum, 0, chunkLen/chunkChecksumSize)
	for range chunkLen / chunkChecksumSize {
		var ch ChunkChecksum
		var err error
		if ch.ArchiveIndex, err = c.Uint32(); err != nil {
			return fmt.Errorf("read chunk checksum: %w", err)
		}
		if ch.Offset, err = c.Uint32(); err != nil {
			return fmt.Errorf("read chunk checksum: %w", err)
		}
		if ch.Length, err = c.Uint32(); err != nil {
			return fmt.Errorf("read chunk checksum: %w", err)
		}
		sum, err := c.Bytes(md5.Size)
		if err != nil {
			return fmt.Errorf("read chunk checksum: %w", err)
		}
		copy(ch.Sum[:], sum)
		d.chunks = append(d.chunks, ch)
	}

	for _, sum := range []*[md5.Size]byte{&d.declared.tree, &d.declared.chunkSection} {
		b, err := c.Bytes(md5.Size)
		if err != nil {
			return fmt.Errorf("read other-MD5 section: %w", err)
		}
		copy(sum[:], b)
	}
	// Third stored sum covers the whole directory file; skip it.
	if _, err := c.Bytes(md5.Size); err != nil {
		return fmt.Errorf("read other-MD5 section: %w", err)
	}

	if sigLen > 0 {
		d.signature = d.data[end-sigLen : end]
	}
	d.actual.tree = md5.Sum(treeBytes)
	d.actual.chunkSection = md5.Sum(d.data[start : start+chunkLen])
	return nil
}

// Chunks returns the archive-MD5 records from a v2 trailer, nil for v1.
// The returned slice must be treated as immutable.
func (d *Directory) Chunks() []ChunkChecksum {
	return d.chunks
}

// SignatureSection returns the opaque v2 signature section bytes, nil when
// absent. The slice aliases the parsed buffer and must be treated as
// immutable.
func (d *Directory) SignatureSection() []byte {
	return d.signature
}

// VerifyTree checks the encoded tree against the checksum stored in the v2
// trailer. Version 1 directories carry no checksums and always verify.
func (d *Directory) VerifyTree() error {
	if d.header.Version < 2 {
		return nil
	}
	if d.actual.tree != d.declared.tree {
		return fmt.Errorf("tree: %w", ErrChecksumMismatch)
	}
	return nil
}

// VerifyChunkSection checks the archive-MD5 section bytes against the
// checksum stored in the v2 trailer. Version 1 directories always verify.
func (d *Directory) VerifyChunkSection() error {
	if d.header.Version < 2 {
		return nil
	}
	if d.actual.chunkSection != d.declared.chunkSection {
		return fmt.Errorf("archive-MD5 section: %w", ErrChecksumMismatch)
	}
	return nil
}

// VerifyChunks checks every archive-MD5 record for the given archive index
// against the referenced content, reading sibling archives through the
// handle cache. Records for SelfIndex are checked against the residual data
// region.
func (d *Directory) VerifyChunks(index uint16) error {
	for _, ch := range d.chunks {
		if ch.ArchiveIndex != uint32(index) {
			continue
		}
		buf := make([]byte, ch.Length)
		var err error
		if index == SelfIndex {
			err = d.selfReadAt(ch.Offset, buf)
		} else {
			err = d.archiveReadAt(index, ch.Offset, buf)
		}
		if err != nil {
			return fmt.Errorf("verify archive %d: %w", index, err)
		}
		if md5.Sum(buf) != ch.Sum {
			return fmt.Errorf("archive %d chunk at offset %d: %w", index, ch.Offset, ErrChecksumMismatch)
		}
	}
	return nil
}
