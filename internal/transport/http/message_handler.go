package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/node"
)

const (
	errInvalidBody  = "invalid_body"
	errMissingField = "missing_field"
	msgInvalidJSON  = "invalid json"
)

// Ledger is the node surface the API drives.
type Ledger interface {
	Identity() domain.Party
	SendMessage(ctx context.Context, recipient, contents, attachmentFilename string) (*node.FlowHandle, error)
	Reply(ctx context.Context, linearID domain.UniqueIdentifier, contents, attachmentFilename string) (*node.FlowHandle, error)
	Flow(ctx context.Context, id string) (*flow.Checkpoint, error)
}

type MessageHandler struct {
	vault ledger.Vault
	node  Ledger
	wait  time.Duration
}

// NewMessageHandler builds the message routes. wait bounds how long a
// request blocks on its flow before answering 202 with the flow id.
func NewMessageHandler(n Ledger, vault ledger.Vault, wait time.Duration) *MessageHandler {
	return &MessageHandler{node: n, vault: vault, wait: wait}
}

type sendRequest struct {
	Recipient  string `json:"recipient"`
	Contents   string `json:"contents"`
	Attachment string `json:"attachment"`
}

type replyRequest struct {
	Contents   string `json:"contents"`
	Attachment string `json:"attachment"`
}

// MessageView is one unconsumed message version.
type MessageView struct {
	LinearID  domain.UniqueIdentifier `json:"linear_id"`
	Sender    string                  `json:"sender"`
	Recipient string                  `json:"recipient"`
	Contents  string                  `json:"contents"`
	Ref       domain.StateRef         `json:"ref"`
}

// FlowResult is returned by the send and reply routes.
type FlowResult struct {
	FlowID   string                  `json:"flow_id"`
	State    flow.State              `json:"state"`
	TxID     domain.SecureHash       `json:"tx_id,omitempty"`
	LinearID domain.UniqueIdentifier `json:"linear_id,omitempty"`
}

// Send POST /messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, errInvalidBody, msgInvalidJSON)
		return
	}
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Attachment = strings.TrimSpace(req.Attachment)
	if req.Recipient == "" {
		WriteError(w, http.StatusBadRequest, errMissingField, "recipient is required")
		return
	}
	if req.Attachment == "" {
		WriteError(w, http.StatusBadRequest, errMissingField, "attachment is required")
		return
	}

	fh, err := h.node.SendMessage(r.Context(), req.Recipient, req.Contents, req.Attachment)
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}
	h.await(w, r, fh)
}

// Reply POST /messages/{linearID}/reply
func (h *MessageHandler) Reply(w http.ResponseWriter, r *http.Request) {
	linearID := domain.UniqueIdentifier(chi.URLParam(r, "linearID"))

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, errInvalidBody, msgInvalidJSON)
		return
	}
	req.Attachment = strings.TrimSpace(req.Attachment)
	if req.Attachment == "" {
		WriteError(w, http.StatusBadRequest, errMissingField, "attachment is required")
		return
	}

	fh, err := h.node.Reply(r.Context(), linearID, req.Contents, req.Attachment)
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}
	h.await(w, r, fh)
}

func (h *MessageHandler) await(w http.ResponseWriter, r *http.Request, fh *node.FlowHandle) {
	ctx := r.Context()
	if h.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.wait)
		defer cancel()
	}

	stx, err := fh.Result(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		state := flow.State("")
		if cp, cpErr := h.node.Flow(r.Context(), fh.ID); cpErr == nil {
			state = cp.State
		}
		WriteJSON(w, http.StatusAccepted, FlowResult{FlowID: fh.ID, State: state})
		return
	}
	if err != nil {
		WriteDomainError(w, r, fh.ID, err)
		return
	}

	res := FlowResult{FlowID: fh.ID, State: flow.StateCommitted, TxID: stx.ID()}
	if len(stx.Tx.Outputs) > 0 {
		res.LinearID = stx.Tx.Outputs[0].Data.LinearID
	}
	WriteJSON(w, http.StatusCreated, res)
}

// List GET /messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	states, err := h.vault.Unconsumed(r.Context())
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}

	out := make([]MessageView, 0, len(states))
	for _, s := range states {
		out = append(out, MessageView{
			LinearID:  s.State.Data.LinearID,
			Sender:    s.State.Data.Sender.Name,
			Recipient: s.State.Data.Recipient.Name,
			Contents:  s.State.Data.Contents,
			Ref:       s.Ref,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LinearID < out[j].LinearID })
	WriteJSON(w, http.StatusOK, out)
}

// Transaction GET /transactions/{id}
func (h *MessageHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSecureHash(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_hash", err.Error())
		return
	}
	b, err := h.vault.TransactionBytes(r.Context(), id)
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// FlowView is a checkpoint without the transaction bodies.
type FlowView struct {
	FlowID       string            `json:"flow_id"`
	Role         flow.Role         `json:"role"`
	State        flow.State        `json:"state"`
	Counterparty string            `json:"counterparty"`
	TxID         domain.SecureHash `json:"tx_id,omitempty"`
	FailedIn     flow.State        `json:"failed_in,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorDetail  string            `json:"error_detail,omitempty"`
	Attempts     int               `json:"delivery_attempts,omitempty"`
	Deadline     time.Time         `json:"deadline"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Flow GET /flows/{id}
func (h *MessageHandler) Flow(w http.ResponseWriter, r *http.Request) {
	cp, err := h.node.Flow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, r, "", err)
		return
	}
	view := FlowView{
		FlowID:       cp.FlowID,
		Role:         cp.Role,
		State:        cp.State,
		Counterparty: cp.Counterparty,
		FailedIn:     cp.FailedIn,
		ErrorCode:    cp.ErrorCode,
		ErrorDetail:  cp.ErrorDetail,
		Attempts:     cp.Attempts,
		Deadline:     cp.Deadline,
		UpdatedAt:    cp.UpdatedAt,
	}
	if cp.Transaction != nil {
		view.TxID = cp.Transaction.ID()
	}
	WriteJSON(w, http.StatusOK, view)
}

// Identity GET /identity
func (h *MessageHandler) Identity(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.node.Identity())
}
