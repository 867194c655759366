package vpk

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// ReadFile assembles and returns the full content of the named entry:
// the preload payload followed by the external byte range.
//
// Self-contained entries (ArchiveIndex == SelfIndex) are served from the
// directory file's residual data; other entries are read from the numbered
// sibling archive, opening and caching its handle on first use. Use
// ReadWithCRC to validate the assembled content against the stored checksum.
func (d *Directory) ReadFile(name string, opts ...ReadOption) ([]byte, error) {
	var cfg readConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	name = NormalizePath(name)
	e, ok := d.entries[name]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", name, ErrNotFound)
	}
	return d.readEntry(e, cfg.validate)
}

// readEntry assembles preload and external content into one buffer.
func (d *Directory) readEntry(e Entry, validate bool) ([]byte, error) {
	buf := make([]byte, e.TotalSize())
	copy(buf, e.Preload)

	if e.Length > 0 {
		dst := buf[e.PreloadBytes:]
		var err error
		if e.ArchiveIndex == SelfIndex {
			err = d.selfReadAt(e.Offset, dst)
		} else {
			err = d.archiveReadAt(e.ArchiveIndex, e.Offset, dst)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Path(), err)
		}
	}

	if validate {
		if sum := crc32.ChecksumIEEE(buf); sum != e.CRC {
			return nil, fmt.Errorf("read %s: crc 0x%08X, want 0x%08X: %w",
				e.Path(), sum, e.CRC, ErrChecksumMismatch)
		}
	}
	return buf, nil
}

// selfReadAt copies a range from the residual data region into dst.
func (d *Directory) selfReadAt(off uint32, dst []byte) error {
	start := int(off)
	end := start + len(dst)
	if end > len(d.data) {
		return fmt.Errorf("residual range %d..%d beyond %d bytes: %w",
			start, end, len(d.data), ErrShortRead)
	}
	copy(dst, d.data[start:end])
	return nil
}

// archiveReadAt fills dst from the sibling archive for the given index.
func (d *Directory) archiveReadAt(index uint16, off uint32, dst []byte) error {
	f, err := d.archive(index)
	if err != nil {
		return err
	}

	n, err := f.ReadAt(dst, int64(off))
	if n == len(dst) {
		// ReadAt may return io.EOF alongside a full read.
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = ErrShortRead
	}
	return fmt.Errorf("archive %d at offset %d: %d of %d bytes: %w",
		index, off, n, len(dst), err)
}

// archive returns the cached handle for the given index, opening it on
// first use. Concurrent first-opens for the same index are collapsed so at
// most one handle is ever cached per index.
func (d *Directory) archive(index uint16) (ArchiveFile, error) {
	d.mu.Lock()
	f, ok := d.archives[index]
	d.mu.Unlock()
	if ok {
		return f, nil
	}

	v, err, _ := d.group.Do(strconv.FormatUint(uint64(index), 10), func() (any, error) {
		d.mu.Lock()
		if f, ok := d.archives[index]; ok {
			d.mu.Unlock()
			return f, nil
		}
		opener := d.opener
		d.mu.Unlock()

		if opener == nil {
			return nil, ErrNoOpener
		}
		f, err := opener.OpenArchive(index)
		if err != nil {
			return nil, err
		}
		d.log().Debug("opened sibling archive", "index", index)

		d.mu.Lock()
		d.archives[index] = f
		d.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ArchiveFile), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// Close snapshots and clears the handle cache, closes every cached handle
// concurrently, and waits for all closes to finish. Every close failure is
// reported in the returned error.
//
// Close is a teardown operation; it must not run concurrently with
// in-flight reads.
func (d *Directory) Close() error {
	d.mu.Lock()
	archives := d.archives
	d.archives = make(map[uint16]ArchiveFile)
	d.mu.Unlock()

	var g errgroup.Group
	errs := make([]error, len(archives))
	i := 0
	for index, f := range archives {
		slot := &errs[i]
		i++
		g.Go(func() error {
			if err := f.Close(); err != nil {
				*slot = fmt.Errorf("close archive %d: %w", index, err)
			}
			return nil
		})
	}
	_ = g.Wait() // failures land in errs
	return errors.Join(errs...)
}
