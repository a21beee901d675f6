package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Flowtrack/internal/config"
	"github.com/shaiso/Flowtrack/internal/domain"
	"github.com/shaiso/Flowtrack/internal/engine"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage tracked flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowUploadCmd(clientFn, outputFn),
		newFlowCompileCmd(outputFn),
	)

	return cmd
}

var summaryHeaders = []string{"NAME", "CATEGORIES", "NODES", "EDGES"}

func summaryRow(s domain.FlowSummary) []string {
	return []string{s.Name, strconv.Itoa(s.CategoryCount), strconv.Itoa(s.NodeCount), strconv.Itoa(s.EdgeCount)}
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = summaryRow(f)
			}

			out.Print(summaryHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show flow graph and stage order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(flow)
				return nil
			}

			out.Table(summaryHeaders, [][]string{summaryRow(flow.Summary)})
			fmt.Fprintf(out.w, "\nRefresh interval: %ds\n", flow.RefreshInterval)
			fmt.Fprintf(out.w, "Stage order:      %s\n\n", strings.Join(flow.StageOrder, " -> "))
			out.Table([]string{"STAGE", "CATEGORY", "STATUS", "BACKEND"}, stageRows(flow))
			return nil
		},
	}
}

// stageRows строит строки стадий графа с привязкой к бэкендам.
func stageRows(flow *FlowResponse) [][]string {
	if flow.Graph == nil {
		return nil
	}

	var rows [][]string
	for _, n := range flow.Graph.Nodes {
		if !n.IsStage() {
			continue
		}
		backend := "-"
		if dagID, ok := flow.OrchestratorMapping[n.Data.Label]; ok {
			backend = "airflow:" + dagID
		}
		if ref, ok := flow.ProcessMapping[n.Data.Label]; ok {
			backend = fmt.Sprintf("onprem:%d/%d", ref.BpfID, ref.ProcessID)
		}
		category := n.ParentNode
		if c := flow.Graph.Node(n.ParentNode); c != nil {
			category = c.Data.Label
		}
		rows = append(rows, []string{n.Data.Label, category, string(n.Data.Status), backend})
	}
	return rows
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Stop tracking a flow (config file is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow unregistered: %s", args[0]))
			return nil
		},
	}
}

func newFlowUploadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a flow config (JSON or YAML) and start tracking it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.UploadConfig(args[0])
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				out.Warn(w)
			}
			verb := "registered"
			if result.Replaced {
				verb = "replaced"
			}
			out.Success(fmt.Sprintf("Flow %s: %s (%s)", verb, result.FlowName, result.File))
			out.Print(summaryHeaders, [][]string{summaryRow(result.Summary)}, result)
			return nil
		},
	}
}

func newFlowCompileCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a flow config locally and print the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			result, err := compileFile(args[0])
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				out.Warn(w.Error())
			}
			if len(result.Graph.StageLabels()) == 0 {
				return engine.ErrEmptyDefinition
			}

			if out.jsonMode {
				out.JSON(result.Graph)
				return nil
			}

			dag, err := engine.BuildDAG(result.Graph)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(dag.Order))
			for _, n := range dag.Order {
				deps := make([]string, len(n.DependsOn))
				for i, d := range n.DependsOn {
					deps[i] = d.Label
				}
				rows = append(rows, []string{n.Label, n.Category, strings.Join(deps, ",")})
			}
			out.Table([]string{"STAGE", "CATEGORY", "AFTER"}, rows)
			return nil
		},
	}
}

// compileFile читает конфигурацию flow и компилирует её граф.
func compileFile(path string) (*engine.Result, error) {
	format, ok := config.FormatFromName(path)
	if !ok {
		return nil, fmt.Errorf("unsupported config extension: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := config.ParseFlowConfig(data, format)
	if err != nil {
		return nil, err
	}

	return engine.Compile(cfg.FlowDefinition.Overall, cfg.FlowDefinition.SubStages), nil
}
