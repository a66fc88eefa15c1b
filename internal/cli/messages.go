package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	http_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http"
)

func uploadCmd(opts *options) *cobra.Command {
	var uploader string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a whitelist file as an attachment",
		Long: `Upload a file to the node's attachment store. Files that are not zip
archives are wrapped into one under their own name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.client().Upload(cmd.Context(), args[0], uploader)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attachment uploaded with hash - %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&uploader, "uploader", "", "uploader label recorded with the attachment")
	return cmd
}

func sendCmd(opts *options) *cobra.Command {
	var attachment string

	cmd := &cobra.Command{
		Use:   "send <recipient> <contents>",
		Short: "Start a new message thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, pending, err := opts.client().Send(cmd.Context(), args[0], args[1], attachment)
			if err != nil {
				return err
			}
			printFlowResult(cmd.OutOrStdout(), res, pending)
			return nil
		},
	}
	cmd.Flags().StringVarP(&attachment, "attachment", "a", "", "filename of the whitelist attachment")
	cmd.MarkFlagRequired("attachment")
	return cmd
}

func replyCmd(opts *options) *cobra.Command {
	var attachment string

	cmd := &cobra.Command{
		Use:   "reply <linear-id> <contents>",
		Short: "Reply to the latest message of a thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, pending, err := opts.client().Reply(cmd.Context(), args[0], args[1], attachment)
			if err != nil {
				return err
			}
			printFlowResult(cmd.OutOrStdout(), res, pending)
			return nil
		},
	}
	cmd.Flags().StringVarP(&attachment, "attachment", "a", "", "filename of the whitelist attachment")
	cmd.MarkFlagRequired("attachment")
	return cmd
}

func printFlowResult(w io.Writer, res *http_transport.FlowResult, pending bool) {
	if pending {
		fmt.Fprintf(w, "%s flow %s is still running (%s)\n", warnColor.Sprint("PENDING"), res.FlowID, res.State)
		return
	}
	fmt.Fprintf(w, "%s tx %s\n", okColor.Sprint("COMMITTED"), res.TxID)
	fmt.Fprintf(w, "  thread: %s\n", res.LinearID)
	fmt.Fprintf(w, "  flow:   %s\n", dimColor.Sprint(res.FlowID))
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the latest version of every thread in the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "THREAD\tFROM\tTO\tCONTENTS")
			for _, m := range msgs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.LinearID, m.Sender, m.Recipient, m.Contents)
			}
			return tw.Flush()
		},
	}
}

func txCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tx <id>",
		Short: "Show a recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stx, err := opts.client().Transaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Transaction %s\n", stx.ID())
			fmt.Fprintf(w, "  notary:  %s\n", stx.Tx.Notary.Name)
			for _, in := range stx.Tx.Inputs {
				fmt.Fprintf(w, "  input:   %s\n", in)
			}
			for _, out := range stx.Tx.Outputs {
				fmt.Fprintf(w, "  output:  %s -> %s %q\n", out.Data.Sender.Name, out.Data.Recipient.Name, out.Data.Contents)
			}
			for _, c := range stx.Tx.Commands {
				fmt.Fprintf(w, "  command: %s (attachment %s)\n", c.Value.Kind, c.Value.AttachmentID.Short())
			}
			fmt.Fprintf(w, "  signatures: %d\n", len(stx.Sigs))
			return nil
		},
	}
}
