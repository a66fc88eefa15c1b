package attachment

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// WhitelistHeader names the CSV column holding permitted messages.
const WhitelistHeader = "valid_messages"

// Whitelist is the set of message strings an attachment permits.
// Matching is exact and case-sensitive.
type Whitelist struct {
	entries map[string]struct{}
}

func (w *Whitelist) Contains(s string) bool {
	_, ok := w.entries[s]
	return ok
}

// ParseWhitelist reads CSV whose header row has a valid_messages column.
func ParseWhitelist(r io.Reader) (*Whitelist, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: whitelist is empty", domain.ErrMalformedAttachment)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAttachment, err)
	}

	col := -1
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if strings.TrimSpace(h) == WhitelistHeader {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: missing %q header", domain.ErrMalformedAttachment, WhitelistHeader)
	}

	wl := &Whitelist{entries: make(map[string]struct{})}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAttachment, err)
		}
		if col < len(rec) {
			wl.entries[rec[col]] = struct{}{}
		}
	}
	return wl, nil
}

// ReadWhitelist opens an archive and parses its single CSV entry.
func ReadWhitelist(archive []byte) (*Whitelist, error) {
	_, content, err := OpenSingleEntry(archive)
	if err != nil {
		return nil, err
	}
	return ParseWhitelist(bytes.NewReader(content))
}
