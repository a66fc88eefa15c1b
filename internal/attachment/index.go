package attachment

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Index stores immutable archives by content hash and resolves them by id
// or by the filename they were uploaded under.
type Index interface {
	ResolveByFilename(ctx context.Context, filename string) (domain.SecureHash, error)
	ResolveByID(ctx context.Context, id domain.SecureHash) (*domain.Attachment, error)
	Store(ctx context.Context, r io.Reader, uploader, filename string) (domain.SecureHash, error)
}

// Importer is implemented by indexes that accept attachments received from
// a counterparty. Imported attachments are reachable by id only; the
// sender's filename never enters the local filename index.
type Importer interface {
	Import(ctx context.Context, a *domain.Attachment) error
}

// ReadArchive reads at most MaxArchiveSize bytes and checks the zip magic.
func ReadArchive(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(data) > MaxArchiveSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", domain.ErrMalformedAttachment, MaxArchiveSize)
	}
	if !IsArchive(data) {
		return nil, fmt.Errorf("%w: not a zip archive", domain.ErrMalformedAttachment)
	}
	return data, nil
}

// MemoryIndex is an in-process Index.
type MemoryIndex struct {
	mu    sync.RWMutex
	items map[domain.SecureHash]*domain.Attachment
	names map[string]map[domain.SecureHash]struct{}
	now   func() time.Time
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		items: make(map[domain.SecureHash]*domain.Attachment),
		names: make(map[string]map[domain.SecureHash]struct{}),
		now:   time.Now,
	}
}

func (m *MemoryIndex) Store(ctx context.Context, r io.Reader, uploader, filename string) (domain.SecureHash, error) {
	data, err := ReadArchive(r)
	if err != nil {
		return "", err
	}
	a := &domain.Attachment{
		ID:         domain.SHA256(data),
		Filename:   filename,
		Uploader:   uploader,
		Data:       data,
		UploadedAt: m.now().UTC(),
	}
	m.put(a)
	return a.ID, nil
}

func (m *MemoryIndex) Import(ctx context.Context, a *domain.Attachment) error {
	if err := a.Verify(); err != nil {
		return err
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[cp.ID]; !ok {
		m.items[cp.ID] = &cp
	}
	return nil
}

func (m *MemoryIndex) put(a *domain.Attachment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[a.ID]; !ok {
		m.items[a.ID] = a
	}
	if a.Filename == "" {
		return
	}
	set, ok := m.names[a.Filename]
	if !ok {
		set = make(map[domain.SecureHash]struct{})
		m.names[a.Filename] = set
	}
	set[a.ID] = struct{}{}
}

func (m *MemoryIndex) ResolveByFilename(ctx context.Context, filename string) (domain.SecureHash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.names[filename]
	switch len(set) {
	case 0:
		return "", fmt.Errorf("%w: no attachment named %q", domain.ErrAttachmentResolution, filename)
	case 1:
		for id := range set {
			return id, nil
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id.Short())
	}
	sort.Strings(ids)
	return "", fmt.Errorf("%w: %d attachments named %q (%v)", domain.ErrAttachmentResolution, len(set), filename, ids)
}

func (m *MemoryIndex) ResolveByID(ctx context.Context, id domain.SecureHash) (*domain.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAttachmentNotFound, id)
	}
	return a, nil
}
