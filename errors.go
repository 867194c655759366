package vpk

import (
	"errors"

	"github.com/meigma/vpk/internal/cursor"
)

// Sentinel errors returned by Parse.
var (
	// ErrBadSignature is returned when the directory file does not start with
	// the VPK magic.
	ErrBadSignature = errors.New("vpk: bad signature")

	// ErrUnsupportedVersion is returned for versions other than 1 and 2.
	ErrUnsupportedVersion = errors.New("vpk: unsupported version")

	// ErrInvalidHeader is returned when a v2 header carries an other-MD5
	// section size other than 48.
	ErrInvalidHeader = errors.New("vpk: invalid header")

	// ErrBadTerminator is returned when an entry record does not end with the
	// 0xFFFF terminator.
	ErrBadTerminator = errors.New("vpk: bad entry terminator")
)

// Sentinel errors returned by ReadFile and Close.
var (
	// ErrNotFound is returned when a path is absent from the entry table.
	ErrNotFound = errors.New("vpk: file not found")

	// ErrShortRead is returned when an archive read yields fewer bytes than
	// the entry describes.
	ErrShortRead = errors.New("vpk: short read")

	// ErrChecksumMismatch is returned when content does not match its stored
	// checksum.
	ErrChecksumMismatch = errors.New("vpk: checksum mismatch")

	// ErrNoOpener is returned when an entry lives in a sibling archive but no
	// archive opener is configured.
	ErrNoOpener = errors.New("vpk: no archive opener configured")
)

// Cursor errors re-exported from internal/cursor.
var (
	// ErrOutOfBounds is returned when a fixed-width read exceeds the buffer.
	ErrOutOfBounds = cursor.ErrOutOfBounds

	// ErrInsufficientData is returned when fewer bytes remain than requested.
	ErrInsufficientData = cursor.ErrInsufficientData

	// ErrInvalidOffset is returned when a seek target falls outside the buffer.
	ErrInvalidOffset = cursor.ErrInvalidOffset
)
