package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/tx"
)

// AttachmentIndex stores archives in postgres. Content is keyed by hash;
// the same content may be known under several filenames.
type AttachmentIndex struct {
	DB *sql.DB
	Tx tx.Transactor
}

func (a *AttachmentIndex) Store(ctx context.Context, r io.Reader, uploader, filename string) (domain.SecureHash, error) {
	data, err := attachment.ReadArchive(r)
	if err != nil {
		return "", err
	}
	id := domain.SHA256(data)
	err = a.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return a.insert(ctx, tx, &domain.Attachment{ID: id, Filename: filename, Uploader: uploader, Data: data})
	})
	return id, err
}

func (a *AttachmentIndex) Import(ctx context.Context, att *domain.Attachment) error {
	if err := att.Verify(); err != nil {
		return err
	}
	// Stored by hash only so a counterparty's filename cannot shadow ours.
	imported := *att
	imported.Filename = ""
	return a.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return a.insert(ctx, tx, &imported)
	})
}

func (a *AttachmentIndex) insert(ctx context.Context, tx *sql.Tx, att *domain.Attachment) error {
	q := getter(a.DB, tx)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO attachments (id, uploader, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, att.ID.String(), att.Uploader, att.Data); err != nil {
		return err
	}
	if att.Filename == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO attachment_names (filename, attachment_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, att.Filename, att.ID.String())
	return err
}

func (a *AttachmentIndex) ResolveByFilename(ctx context.Context, filename string) (domain.SecureHash, error) {
	rows, err := getter(a.DB, nil).QueryContext(ctx, `
		SELECT attachment_id FROM attachment_names
		WHERE filename = $1
		ORDER BY attachment_id
		LIMIT 2
	`, filename)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []domain.SecureHash
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, domain.SecureHash(id))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: no attachment named %q", domain.ErrAttachmentResolution, filename)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: several attachments named %q", domain.ErrAttachmentResolution, filename)
	}
}

func (a *AttachmentIndex) ResolveByID(ctx context.Context, id domain.SecureHash) (*domain.Attachment, error) {
	att := &domain.Attachment{ID: id}
	err := getter(a.DB, nil).QueryRowContext(ctx, `
		SELECT a.uploader, a.data, a.uploaded_at, COALESCE(MIN(n.filename), '')
		FROM attachments a
		LEFT JOIN attachment_names n ON n.attachment_id = a.id
		WHERE a.id = $1
		GROUP BY a.id
	`, id.String()).Scan(&att.Uploader, &att.Data, &att.UploadedAt, &att.Filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAttachmentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return att, nil
}
