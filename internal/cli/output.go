package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Flowtrack/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return newOutput(jsonMode, os.Stdout, os.Stderr)
}

func newOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Status выводит снимок статусов flow: стадии в заданном порядке,
// затем остальные по алфавиту.
func (o *Output) Status(update domain.StatusUpdate, order []string) {
	if o.jsonMode {
		o.JSON(update)
		return
	}

	finished := 0
	for _, st := range update.Stages {
		if st.Status.IsTerminal() {
			finished++
		}
	}
	fmt.Fprintf(o.w, "%s  %s  %d/%d finished\n",
		update.FlowName,
		update.Timestamp.Local().Format(time.DateTime),
		finished, len(update.Stages),
	)

	rows := make([][]string, 0, len(update.Stages))
	for _, stage := range stageNames(update.Stages, order) {
		st := update.Stages[stage]
		rows = append(rows, []string{
			stage,
			string(st.Status),
			formatTime(st.StartTime),
			formatTime(st.EndTime),
			st.ErrorDetail(),
		})
	}
	o.Table([]string{"STAGE", "STATUS", "STARTED", "ENDED", "ERROR"}, rows)
}

// stageNames упорядочивает стадии снимка.
func stageNames(stages map[string]domain.StageStatus, order []string) []string {
	names := make([]string, 0, len(stages))
	seen := make(map[string]bool, len(stages))
	for _, stage := range order {
		if _, ok := stages[stage]; ok && !seen[stage] {
			names = append(names, stage)
			seen[stage] = true
		}
	}

	rest := make([]string, 0, len(stages)-len(names))
	for stage := range stages {
		if !seen[stage] {
			rest = append(rest, stage)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
