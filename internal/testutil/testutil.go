// Package testutil assembles synthetic VPK directory files for tests.
package testutil

import (
	"bytes"
	"crypto/md5" //nolint:gosec // checksum mandated by the format under test
	"encoding/binary"
)

// File describes one entry to encode into a test directory tree.
//
// A zero Terminator encodes the valid 0xFFFF; set it to anything else to
// produce a corrupt record.
type File struct {
	Ext, Folder, Name string
	CRC               uint32
	ArchiveIndex      uint16
	Offset            uint32
	Length            uint32
	Preload           []byte
	Terminator        uint16
}

// Chunk describes one archive-MD5 record for a v2 trailer.
type Chunk struct {
	ArchiveIndex   uint32
	Offset, Length uint32
	Sum            [md5.Size]byte
}

// Dir assembles directory-file bytes for the given version, entries, and
// residual data. Files sharing an extension and folder must be adjacent.
type Dir struct {
	Version   uint32
	Files     []File
	Residual  []byte
	Chunks    []Chunk
	Signature []byte

	// CorruptTreeMD5 flips a bit in the stored tree checksum.
	CorruptTreeMD5 bool
}

// Build encodes the directory file.
func (d Dir) Build() []byte {
	tree := d.buildTree()
	chunks := d.buildChunks()

	var buf bytes.Buffer
	writeU32(&buf, 0x55AA1234)
	writeU32(&buf, d.Version)
	writeU32(&buf, uint32(len(tree)))

	if d.Version != 2 {
		buf.Write(tree)
		buf.Write(d.Residual)
		return buf.Bytes()
	}

	writeU32(&buf, uint32(len(d.Residual)))
	writeU32(&buf, uint32(len(chunks)))
	writeU32(&buf, 48)
	writeU32(&buf, uint32(len(d.Signature)))
	buf.Write(tree)
	buf.Write(d.Residual)
	buf.Write(chunks)

	treeSum := md5.Sum(tree)
	if d.CorruptTreeMD5 {
		treeSum[0] ^= 0xFF
	}
	buf.Write(treeSum[:])
	chunkSum := md5.Sum(chunks)
	buf.Write(chunkSum[:])
	var whole [md5.Size]byte
	buf.Write(whole[:])
	buf.Write(d.Signature)
	return buf.Bytes()
}

// buildTree encodes the three-level null-terminated index.
func (d Dir) buildTree() []byte {
	var buf bytes.Buffer
	for i := 0; i < len(d.Files); {
		ext := d.Files[i].Ext
		writeSegment(&buf, ext)
		for i < len(d.Files) && d.Files[i].Ext == ext {
			folder := d.Files[i].Folder
			writeSegment(&buf, folder)
			for i < len(d.Files) && d.Files[i].Ext == ext && d.Files[i].Folder == folder {
				writeFile(&buf, d.Files[i])
				i++
			}
			buf.WriteByte(0) // end of folder
		}
		buf.WriteByte(0) // end of extension
	}
	buf.WriteByte(0) // end of tree
	return buf.Bytes()
}

func writeFile(buf *bytes.Buffer, f File) {
	writeSegment(buf, f.Name)
	writeU32(buf, f.CRC)
	writeU16(buf, uint16(len(f.Preload)))
	writeU16(buf, f.ArchiveIndex)
	writeU32(buf, f.Offset)
	writeU32(buf, f.Length)
	term := f.Terminator
	if term == 0 {
		term = 0xFFFF
	}
	writeU16(buf, term)
	buf.Write(f.Preload)
}

func (d Dir) buildChunks() []byte {
	var buf bytes.Buffer
	for _, c := range d.Chunks {
		writeU32(&buf, c.ArchiveIndex)
		writeU32(&buf, c.Offset)
		writeU32(&buf, c.Length)
		buf.Write(c.Sum[:])
	}
	return buf.Bytes()
}

// writeSegment encodes a tree segment, storing an empty one as the
// single-space placeholder the format uses.
func writeSegment(buf *bytes.Buffer, s string) {
	if s == "" {
		s = " "
	}
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}
