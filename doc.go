// Package vpk reads Valve Pak (VPK) archives: a directory file holding a
// nested index of virtual file entries, plus zero or more numbered sibling
// archive files holding the bulk of the content.
//
// The directory index maps extension → folder → filename to an entry record.
// An entry's content can live in up to two places: a preload payload stored
// inline in the index, and a byte range in either the directory file itself
// or one of the sibling archives. ReadFile assembles the two transparently.
//
// # Quick Start
//
// Open a multipart archive and read a file:
//
//	d, err := vpk.Open("pak01_dir.vpk")
//	if err != nil {
//	    return err
//	}
//	defer d.Close()
//	content, err := d.ReadFile("scripts/items.txt", vpk.ReadWithCRC())
//
// Parse an in-memory directory file:
//
//	d, err := vpk.Parse(data)
//
// Directory implements fs.FS, fs.StatFS, and fs.ReadDirFS for stdlib
// compatibility.
//
// Sibling archives are opened lazily on first read and cached; Close
// releases every cached handle. The package only reads archives — building
// or modifying VPK files is out of scope.
package vpk
