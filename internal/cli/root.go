package cli

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type options struct {
	node    string
	token   string
	grpc    string
	timeout time.Duration
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
)

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate a ledgermsg node",
		Long: `ledgerctl uploads whitelist attachments, sends and replies to messages,
and inspects the vault and flows of a ledgermsg node.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.node, "node", envOr("LEDGERCTL_NODE", "http://localhost:8080"), "node API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LEDGERCTL_TOKEN"), "bearer token for the node API")
	root.PersistentFlags().StringVar(&opts.grpc, "grpc", os.Getenv("LEDGERCTL_GRPC"), "node gRPC address; used by flow and health when set")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "request timeout")

	root.AddCommand(uploadCmd(opts))
	root.AddCommand(sendCmd(opts))
	root.AddCommand(replyCmd(opts))
	root.AddCommand(listCmd(opts))
	root.AddCommand(flowCmd(opts))
	root.AddCommand(txCmd(opts))
	root.AddCommand(healthCmd(opts))
	root.AddCommand(watchCmd())

	return root
}

func (o *options) client() *Client {
	return NewClient(o.node, o.token, o.timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
