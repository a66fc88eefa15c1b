package attachment

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// MaxArchiveSize bounds uploads and decompressed entries.
const MaxArchiveSize = 8 << 20

var zipMagic = []byte("PK\x03\x04")

// IsArchive reports whether data starts with a zip local file header.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Wrap stores data as the single entry of a new zip archive.
func Wrap(filename string, data []byte) ([]byte, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: empty entry name", domain.ErrMalformedAttachment)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Unix(0, 0).UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// OpenSingleEntry returns the name and content of the only file in the
// archive. Directories and META-INF/ metadata are ignored.
func OpenSingleEntry(data []byte) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrMalformedAttachment, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		if entry != nil {
			return "", nil, fmt.Errorf("%w: archive holds more than one file (%s, %s)",
				domain.ErrMalformedAttachment, entry.Name, f.Name)
		}
		entry = f
	}
	if entry == nil {
		return "", nil, fmt.Errorf("%w: archive holds no file", domain.ErrMalformedAttachment)
	}

	rc, err := entry.Open()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrMalformedAttachment, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxArchiveSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrMalformedAttachment, err)
	}
	if len(content) > MaxArchiveSize {
		return "", nil, fmt.Errorf("%w: entry %s exceeds %d bytes", domain.ErrMalformedAttachment, entry.Name, MaxArchiveSize)
	}
	return entry.Name, content, nil
}
