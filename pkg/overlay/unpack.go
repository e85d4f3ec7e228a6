// Package overlay unpacks memories delivered as zip archives: one base media
// entry plus sticker/text layers the originating app composited on top. Only
// the base media is kept; overlay layers are discarded.
package overlay

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"snapvault/pkg/errors"
)

// ErrNoBaseEntry is returned when no archive entry can be identified as the
// base media.
var ErrNoBaseEntry = fmt.Errorf("archive contains no identifiable base media entry")

// Selector picks the base media entry out of an archive's file list, or nil
// when none qualifies. The upstream export format documents no contract for
// this, so the choice is a heuristic and deliberately replaceable.
type Selector func(files []*zip.File) *zip.File

// Unpacker extracts base media from overlay archives.
type Unpacker struct {
	// Select identifies the base entry. Defaults to MarkerSelector(marker).
	Select Selector

	// MaxEntrySize caps the uncompressed size of the extracted entry, guarding
	// against hostile archives.
	MaxEntrySize int64
}

// New returns an unpacker using the marker heuristic observed in real
// exports: the base entry's name carries a "-main." infix (-main.jpg,
// -main.mp4) while overlay entries carry "-overlay.".
func New(marker string, maxEntrySize int64) *Unpacker {
	return &Unpacker{
		Select:       MarkerSelector(marker),
		MaxEntrySize: maxEntrySize,
	}
}

// MarkerSelector matches the entry whose name contains marker. When no entry
// matches, it falls back to the sole entry with a known media extension.
func MarkerSelector(marker string) Selector {
	return func(files []*zip.File) *zip.File {
		for _, f := range files {
			if strings.Contains(filepath.Base(f.Name), marker) {
				return f
			}
		}
		var media *zip.File
		for _, f := range files {
			switch strings.ToLower(filepath.Ext(f.Name)) {
			case ".jpg", ".jpeg", ".mp4", ".mov":
				if media != nil {
					return nil // ambiguous
				}
				media = f
			}
		}
		return media
	}
}

// IsArchive sniffs the zip magic so callers can detect overlay archives the
// catalog did not flag.
func IsArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic == [4]byte{'P', 'K', 0x03, 0x04}
}

// ExtractBase replaces the archive at path with its base media entry. The
// extracted bytes are written next to the archive and renamed over it, so a
// failed extraction never leaves a half-written file under the archive's name.
func (u *Unpacker) ExtractBase(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to open archive")
	}

	tmpPath, err := u.extractEntry(&zr.Reader, filepath.Dir(path))

	// The reader must be closed exactly once, and before the rename replaces
	// the archive it still holds open.
	if cerr := zr.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "failed to close archive")
	}
	if err != nil {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
		return "", err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrap(err, "failed to replace archive with base media")
	}
	return path, nil
}

// extractEntry writes the selected base entry to a temp file in dir and
// returns its path. On error the temp file is already removed.
func (u *Unpacker) extractEntry(zr *zip.Reader, dir string) (string, error) {
	base := u.Select(zr.File)
	if base == nil {
		return "", ErrNoBaseEntry
	}
	if u.MaxEntrySize > 0 && int64(base.UncompressedSize64) > u.MaxEntrySize {
		return "", fmt.Errorf("base entry %s exceeds size limit (%d > %d)",
			base.Name, base.UncompressedSize64, u.MaxEntrySize)
	}

	src, err := base.Open()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open entry %s", base.Name)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".overlay-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}

	limit := int64(base.UncompressedSize64)
	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "failed to extract entry %s", base.Name)
	}
	if n == 0 {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("base entry %s is empty", base.Name)
	}
	return tmp.Name(), nil
}
