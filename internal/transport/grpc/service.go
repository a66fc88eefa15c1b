package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
)

const serviceName = "ledgermsg.v1.LedgerQuery"

type GetFlowRequest struct {
	FlowID string `json:"flow_id"`
}

type FlowStatus struct {
	FlowID       string            `json:"flow_id"`
	Role         flow.Role         `json:"role"`
	State        flow.State        `json:"state"`
	Counterparty string            `json:"counterparty"`
	TxID         domain.SecureHash `json:"tx_id,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorDetail  string            `json:"error_detail,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type GetTransactionRequest struct {
	TxID domain.SecureHash `json:"tx_id"`
}

type ListMessagesRequest struct{}

type ListMessagesResponse struct {
	Messages []domain.StateAndRef `json:"messages"`
}

// FlowSource is the part of the node the query service reads flows from.
type FlowSource interface {
	Flow(ctx context.Context, id string) (*flow.Checkpoint, error)
}

// QueryServer answers read-only questions about a node's ledger.
type QueryServer struct {
	Flows FlowSource
	Vault ledger.Vault
}

func (s *QueryServer) GetFlow(ctx context.Context, req *GetFlowRequest) (*FlowStatus, error) {
	if req.FlowID == "" {
		return nil, MapError(fmt.Errorf("%w: flow id is required", domain.ErrInvalidMessage))
	}
	cp, err := s.Flows.Flow(ctx, req.FlowID)
	if err != nil {
		return nil, MapError(err)
	}
	out := &FlowStatus{
		FlowID:       cp.FlowID,
		Role:         cp.Role,
		State:        cp.State,
		Counterparty: cp.Counterparty,
		ErrorCode:    cp.ErrorCode,
		ErrorDetail:  cp.ErrorDetail,
		UpdatedAt:    cp.UpdatedAt,
	}
	if cp.Transaction != nil {
		out.TxID = cp.Transaction.ID()
	}
	return out, nil
}

func (s *QueryServer) GetTransaction(ctx context.Context, req *GetTransactionRequest) (*domain.SignedTransaction, error) {
	stx, err := s.Vault.Transaction(ctx, req.TxID)
	if err != nil {
		return nil, MapError(err)
	}
	return stx, nil
}

func (s *QueryServer) ListMessages(ctx context.Context, _ *ListMessagesRequest) (*ListMessagesResponse, error) {
	states, err := s.Vault.Unconsumed(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return &ListMessagesResponse{Messages: states}, nil
}

func unaryHandler[Req any, Resp any](method string, call func(*QueryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(*QueryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(*QueryServer), ctx, req.(*Req))
			})
		},
	}
}

var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetFlow", (*QueryServer).GetFlow),
		unaryHandler("GetTransaction", (*QueryServer).GetTransaction),
		unaryHandler("ListMessages", (*QueryServer).ListMessages),
	},
	Metadata: "ledgermsg/v1/query",
}
