package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/mq"
)

// NewStatusCmd создаёт группу команд для просмотра статусов стадий.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stage statuses",
	}

	cmd.AddCommand(
		newStatusShowCmd(clientFn, outputFn),
		newStatusWatchCmd(clientFn, outputFn),
		newStatusTailCmd(outputFn),
	)

	return cmd
}

func newStatusShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Poll backends once and print the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			update, err := client.GetStatus(args[0])
			if err != nil {
				return err
			}

			out.Status(*update, stageOrder(client, args[0]))
			return nil
		},
	}
}

func newStatusWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch NAME",
		Short: "Stream snapshots over WebSocket until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			order := stageOrder(client, args[0])
			err := client.WatchStatus(cmd.Context(), args[0], func(update domain.StatusUpdate) error {
				out.Status(update, order)
				if !out.jsonMode {
					fmt.Fprintln(out.w)
				}
				return nil
			})
			if err != nil {
				return err
			}

			out.Success("Stream closed")
			return nil
		},
	}
}

func newStatusTailCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "tail [NAME]",
		Short: "Tail snapshots published to RabbitMQ (all flows if NAME is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			flow := ""
			if len(args) == 1 {
				flow = args[0]
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			conn, err := mq.NewConnection(amqpURL, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			defer conn.Close()

			consumer := mq.NewTailConsumer(conn, logger, flow, func(_ context.Context, update domain.StatusUpdate) error {
				out.Status(update, nil)
				if !out.jsonMode {
					fmt.Fprintln(out.w)
				}
				return nil
			})

			binding := mq.RoutingKeyAll
			if flow != "" {
				binding = mq.RoutingKeyFor(flow)
			}
			out.Success(fmt.Sprintf("Tailing %s [%s], Ctrl+C to stop", mq.ExchangeStatus, binding))
			if err := consumer.Start(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	defaultURL := os.Getenv("RABBITMQ_URL")
	if defaultURL == "" {
		defaultURL = mq.DefaultURL()
	}
	cmd.Flags().StringVar(&amqpURL, "amqp-url", defaultURL, "RabbitMQ URL")

	return cmd
}

// stageOrder возвращает порядок стадий flow; при ошибке — nil
// (стадии выводятся по алфавиту).
func stageOrder(client *Client, name string) []string {
	flow, err := client.GetFlow(name)
	if err != nil {
		return nil
	}
	return flow.StageOrder
}
