package flow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// Checkpoint is the persisted position of a flow. It holds everything needed
// to resume the machine after a restart. Attachments are the archives shipped
// with a proposal, kept until the responder has imported them. RetryAt is set
// while a delivery to the counterparty is pending.
type Checkpoint struct {
	FlowID       string                      `json:"flow_id"`
	Role         Role                        `json:"role"`
	State        State                       `json:"state"`
	Self         string                      `json:"self"`
	Counterparty string                      `json:"counterparty"`
	Transaction  *domain.SignedTransaction   `json:"transaction,omitempty"`
	Dependencies []*domain.SignedTransaction `json:"dependencies,omitempty"`
	Attachments  []domain.Attachment         `json:"attachments,omitempty"`
	ExpectedTxID domain.SecureHash           `json:"expected_tx_id,omitempty"`
	Deadline     time.Time                   `json:"deadline"`
	RetryAt      time.Time                   `json:"retry_at"`
	Attempts     int                         `json:"attempts,omitempty"`
	FailedIn     State                       `json:"failed_in,omitempty"`
	ErrorCode    string                      `json:"error_code,omitempty"`
	ErrorDetail  string                      `json:"error_detail,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// Err rebuilds the failure recorded in the checkpoint, or nil.
func (c *Checkpoint) Err() error {
	cause := c.cause()
	if cause == nil {
		return nil
	}
	state := c.FailedIn
	if state == "" {
		state = c.State
	}
	return &domain.FlowError{FlowID: c.FlowID, State: string(state), Err: cause}
}

func (c *Checkpoint) cause() error {
	if c.ErrorCode == "" && c.ErrorDetail == "" {
		return nil
	}
	return &recordedError{sentinel: domain.ErrorFromCode(c.ErrorCode), detail: c.ErrorDetail}
}

// recordedError is a failure read back from a checkpoint. It keeps the
// original message and still matches its sentinel with errors.Is.
type recordedError struct {
	sentinel error
	detail   string
}

func (e *recordedError) Error() string {
	switch {
	case e.detail != "":
		return e.detail
	case e.sentinel != nil:
		return e.sentinel.Error()
	}
	return "unknown failure"
}

func (e *recordedError) Unwrap() error { return e.sentinel }

type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, flowID string) (*Checkpoint, error)
	// Active lists checkpoints whose state is not terminal.
	Active(ctx context.Context) ([]*Checkpoint, error)
}

type MemoryCheckpointStore struct {
	mu  sync.RWMutex
	cps map[string]Checkpoint
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{cps: make(map[string]Checkpoint)}
}

func (s *MemoryCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cps[cp.FlowID] = *cp
	return nil
}

func (s *MemoryCheckpointStore) Load(ctx context.Context, flowID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.cps[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}
	return &cp, nil
}

func (s *MemoryCheckpointStore) Active(ctx context.Context) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Checkpoint
	for _, cp := range s.cps {
		if !cp.State.Terminal() {
			cp := cp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
