package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
	}{
		{name: "Nil error", err: nil, wantCode: codes.OK},
		{name: "Flow not found", err: domain.ErrFlowNotFound, wantCode: codes.NotFound},
		{name: "Transaction not found", err: domain.ErrTransactionNotFound, wantCode: codes.NotFound},
		{name: "Invalid message", err: domain.ErrInvalidMessage, wantCode: codes.InvalidArgument},
		{name: "Notary conflict", err: &domain.NotaryConflictError{}, wantCode: codes.Aborted},
		{name: "Contract rejection", err: &domain.ContractRejection{Reason: domain.ErrNotInWhitelist}, wantCode: codes.FailedPrecondition},
		{name: "Timeout", err: &domain.FlowError{Err: domain.ErrTimeout}, wantCode: codes.DeadlineExceeded},
		{name: "Already gRPC error", err: status.Error(codes.AlreadyExists, "already exists"), wantCode: codes.AlreadyExists},
		{name: "Unknown error", err: errors.New("boom"), wantCode: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.wantCode, status.Code(got))
		})
	}
}

type flowSource map[string]*flow.Checkpoint

func (f flowSource) Flow(_ context.Context, id string) (*flow.Checkpoint, error) {
	cp, ok := f[id]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return cp, nil
}

func dial(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestQueryService(t *testing.T) {
	flows := flowSource{"f1": {FlowID: "f1", Role: flow.RoleResponder, State: flow.StateCommitted, Counterparty: "Alice"}}
	srv := New(&QueryServer{Flows: flows, Vault: ledger.NewMemoryVault()}, Auth{})
	client := NewQueryClient(dial(t, srv))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.GetFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, flow.StateCommitted, got.State)
	assert.Equal(t, "Alice", got.Counterparty)

	_, err = client.GetFlow(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetFlow(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.GetTransaction(ctx, domain.SHA256([]byte("x")))
	assert.Equal(t, codes.NotFound, status.Code(err))

	msgs, err := client.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHealthService(t *testing.T) {
	srv := New(&QueryServer{Flows: flowSource{}, Vault: ledger.NewMemoryVault()}, Auth{})
	conn := dial(t, srv)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestAuthInterceptor(t *testing.T) {
	flows := flowSource{"f1": {FlowID: "f1", State: flow.StateBuilt}}
	srv := New(&QueryServer{Flows: flows, Vault: ledger.NewMemoryVault()}, Auth{Secret: "s3cret"})
	client := NewQueryClient(dial(t, srv))

	_, err := client.GetFlow(context.Background(), "f1")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
	got, err := client.GetFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, flow.StateBuilt, got.State)
}
