package domain

import (
	"fmt"
	"time"
)

// Attachment is an immutable, content-addressed archive. ID is the SHA-256
// of Data.
type Attachment struct {
	ID         SecureHash `json:"id"`
	Filename   string     `json:"filename"`
	Uploader   string     `json:"uploader"`
	Data       []byte     `json:"data"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

// Verify checks that the content matches the id.
func (a *Attachment) Verify() error {
	if got := SHA256(a.Data); got != a.ID {
		return fmt.Errorf("%w: attachment %s content hashes to %s", ErrMalformedAttachment, a.ID, got)
	}
	return nil
}
