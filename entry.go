package vpk

// SelfIndex is the archive-index sentinel marking entries whose content is
// stored in the directory file itself, after the header and tree.
const SelfIndex = 0x7FFF

// Entry describes one virtual file in the directory index.
//
// Preload aliases the parsed directory buffer and must be treated as
// immutable. Preload is non-nil exactly when PreloadBytes > 0.
type Entry struct {
	// Extension, Folder, and Name are the decoded tree segments. An empty
	// segment was stored as a single space in the tree.
	Extension string
	Folder    string
	Name      string

	// CRC is the CRC-32 (IEEE) checksum of the entry's full content.
	CRC uint32

	// PreloadBytes counts the bytes stored inline in the tree.
	PreloadBytes uint16

	// Preload holds the inline payload, exactly PreloadBytes long.
	Preload []byte

	// ArchiveIndex names the sibling archive holding the external content,
	// or SelfIndex when the directory file holds it.
	ArchiveIndex uint16

	// Offset and Length describe the external content range. For SelfIndex
	// entries the offset is relative to the start of the residual data.
	Offset uint32
	Length uint32
}

// Path returns the entry's virtual path, folder/name.extension, omitting
// empty segments.
func (e Entry) Path() string {
	p := e.Name
	if e.Extension != "" {
		p += "." + e.Extension
	}
	if e.Folder != "" {
		p = e.Folder + "/" + p
	}
	return p
}

// TotalSize returns the full content size: preload plus external bytes.
func (e Entry) TotalSize() int64 {
	return int64(e.PreloadBytes) + int64(e.Length)
}
