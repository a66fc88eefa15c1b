package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	grpc_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/grpc"
)

func (o *options) dial() (*grpc.ClientConn, error) {
	if o.grpc == "" {
		return nil, fmt.Errorf("--grpc address is required")
	}
	return grpc.NewClient(o.grpc,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}

func (o *options) rpcContext(ctx context.Context) context.Context {
	if o.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+o.token)
}

type flowSummary struct {
	ID           string
	Role         flow.Role
	State        flow.State
	Counterparty string
	TxID         string
	ErrorCode    string
	ErrorDetail  string
	UpdatedAt    time.Time
}

func flowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flow <id>",
		Short: "Show the state of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s flowSummary
			if opts.grpc != "" {
				conn, err := opts.dial()
				if err != nil {
					return err
				}
				defer conn.Close()
				st, err := grpc_transport.NewQueryClient(conn).GetFlow(opts.rpcContext(cmd.Context()), args[0])
				if err != nil {
					return err
				}
				s = flowSummary{st.FlowID, st.Role, st.State, st.Counterparty, st.TxID.String(), st.ErrorCode, st.ErrorDetail, st.UpdatedAt}
			} else {
				v, err := opts.client().Flow(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				s = flowSummary{v.FlowID, v.Role, v.State, v.Counterparty, v.TxID.String(), v.ErrorCode, v.ErrorDetail, v.UpdatedAt}
			}
			printFlow(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printFlow(w io.Writer, s flowSummary) {
	state := string(s.State)
	switch {
	case s.State == flow.StateCommitted:
		state = okColor.Sprint(state)
	case s.State.Terminal():
		state = errColor.Sprint(state)
	default:
		state = warnColor.Sprint(state)
	}
	fmt.Fprintf(w, "Flow %s [%s]\n", s.ID, state)
	fmt.Fprintf(w, "  role:         %s\n", s.Role)
	fmt.Fprintf(w, "  counterparty: %s\n", s.Counterparty)
	if s.TxID != "" {
		fmt.Fprintf(w, "  tx:           %s\n", s.TxID)
	}
	if s.ErrorCode != "" {
		fmt.Fprintf(w, "  error:        %s: %s\n", s.ErrorCode, s.ErrorDetail)
	}
	fmt.Fprintf(w, "  updated:      %s\n", dimColor.Sprint(s.UpdatedAt.Format(time.RFC3339)))
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the node's gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := opts.dial()
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
			if err != nil {
				return err
			}
			status := resp.GetStatus()
			if status != healthpb.HealthCheckResponse_SERVING {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", errColor.Sprint(status.String()))
				return fmt.Errorf("node is %s", status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", okColor.Sprint(status.String()))
			return nil
		},
	}
}
