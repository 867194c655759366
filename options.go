package vpk

import "log/slog"

// Option configures a Directory at parse time.
type Option func(*Directory)

// WithOpener sets the opener used to access numbered sibling archives.
//
// Open configures one automatically for `_dir.vpk` paths; Parse callers must
// supply their own before reading entries stored in sibling archives.
func WithOpener(o ArchiveOpener) Option {
	return func(d *Directory) {
		d.opener = o
	}
}

// WithLogger sets a logger for debug-level events such as archive opens and
// handle-cache hits. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		d.logger = l
	}
}

// ReadOption configures a single ReadFile call.
type ReadOption func(*readConfig)

type readConfig struct {
	validate bool
}

// ReadWithCRC validates the assembled content against the entry's stored
// CRC-32 and fails the read with ErrChecksumMismatch on a mismatch.
func ReadWithCRC() ReadOption {
	return func(c *readConfig) {
		c.validate = true
	}
}
