package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http/middleware"
)

type AttachmentHandler struct {
	index attachment.Index
}

func NewAttachmentHandler(index attachment.Index) *AttachmentHandler {
	return &AttachmentHandler{index: index}
}

// Upload POST /attachments
//
// Multipart form with a "file" part and an optional "uploader" field. Files
// that are not zip archives are wrapped in one under their own name.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxArchiveSize+1<<20)
	if err := r.ParseMultipartForm(attachment.MaxArchiveSize); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "expected a multipart form with a file part")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing_file", "file is required")
		return
	}
	defer file.Close()

	uploader := strings.TrimSpace(r.FormValue("uploader"))
	if uploader == "" {
		uploader = middleware.Subject(r.Context())
	}
	if uploader == "" {
		WriteError(w, http.StatusBadRequest, "missing_uploader", "uploader is required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, attachment.MaxArchiveSize+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "failed to read file")
		return
	}
	if len(data) > attachment.MaxArchiveSize {
		WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "attachment exceeds size limit")
		return
	}

	if !attachment.IsArchive(data) {
		data, err = attachment.Wrap(header.Filename, data)
		if err != nil {
			WriteDomainError(w, r, "", err)
			return
		}
	}

	id, err := h.index.Store(r.Context(), bytes.NewReader(data), uploader, header.Filename)
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}

	observability.GetLogger(r.Context()).Info("attachment uploaded",
		zap.String("attachment_id", id.String()),
		zap.String("filename", header.Filename),
		zap.String("uploader", uploader),
	)

	w.Header().Set("Location", "attachments/"+id.String())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, "Attachment uploaded with hash - "+id.String())
}

// Download GET /attachments/{hash}
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSecureHash(chi.URLParam(r, "hash"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_hash", err.Error())
		return
	}

	a, err := h.index.ResolveByID(r.Context(), id)
	if errors.Is(err, domain.ErrAttachmentNotFound) {
		WriteError(w, http.StatusNotFound, "attachment_not_found", "no attachment with hash "+id.String())
		return
	}
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}

	name := a.Filename
	if name == "" {
		name = id.String()
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}
