package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
)

// QueryClient calls the ledger query service over an existing connection.
type QueryClient struct {
	conn grpc.ClientConnInterface
}

func NewQueryClient(conn grpc.ClientConnInterface) *QueryClient {
	return &QueryClient{conn: conn}
}

func (c *QueryClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *QueryClient) GetFlow(ctx context.Context, flowID string) (*FlowStatus, error) {
	out := new(FlowStatus)
	return out, c.invoke(ctx, "GetFlow", &GetFlowRequest{FlowID: flowID}, out)
}

func (c *QueryClient) GetTransaction(ctx context.Context, id domain.SecureHash) (*domain.SignedTransaction, error) {
	out := new(domain.SignedTransaction)
	return out, c.invoke(ctx, "GetTransaction", &GetTransactionRequest{TxID: id}, out)
}

func (c *QueryClient) ListMessages(ctx context.Context) ([]domain.StateAndRef, error) {
	out := new(ListMessagesResponse)
	if err := c.invoke(ctx, "ListMessages", &ListMessagesRequest{}, out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
