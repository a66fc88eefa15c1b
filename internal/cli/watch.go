package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/kafka"
)

func watchCmd() *cobra.Command {
	var (
		brokers string
		topic   string
		group   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream committed transactions from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			consumer, err := kafka.New(splitList(brokers), []string{topic}, group, kafka.CommittedHandler{
				Fn: func(_ context.Context, ev domain.TransactionCommitted) { printEvent(out, ev) },
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			fmt.Fprintf(out, "Watching %s on %s (Ctrl-C to stop)\n", topic, brokers)
			consumer.Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", envOr("KAFKA_BROKERS", "localhost:9092"), "comma separated Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", envOr("KAFKA_TOPIC", "ledger-events"), "ledger event topic")
	cmd.Flags().StringVar(&group, "group", "", "consumer group; empty reads new events only")
	return cmd
}

func printEvent(w io.Writer, ev domain.TransactionCommitted) {
	fmt.Fprintf(w, "%s %s %s %s -> %s %q %s\n",
		dimColor.Sprint(ev.CommittedAt.Format("15:04:05")),
		okColor.Sprint(strings.ToUpper(string(ev.Command))),
		ev.LinearID,
		ev.Sender,
		ev.Recipient,
		ev.Contents,
		dimColor.Sprintf("[%s@%s]", ev.TxID.Short(), ev.Node),
	)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
