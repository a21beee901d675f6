package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для управления файлами конфигураций.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage flow config files",
	}

	cmd.AddCommand(
		newConfigListCmd(clientFn, outputFn),
		newConfigShowCmd(clientFn, outputFn),
		newConfigDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newConfigListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List config files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			names, err := client.ListConfigs()
			if err != nil {
				return err
			}

			rows := make([][]string, len(names))
			for i, n := range names {
				rows[i] = []string{n}
			}

			out.Print([]string{"FILE"}, rows, names)
			return nil
		},
	}
}

func newConfigShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a flow config (passwords redacted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cfg, err := client.GetConfig(args[0])
			if err != nil {
				return err
			}

			// Конфигурация вложенная, таблицей её не показать
			out.JSON(cfg)
			return nil
		},
	}
}

func newConfigDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a config file and stop tracking its flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteConfig(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Config deleted: %s", args[0]))
			return nil
		},
	}
}
