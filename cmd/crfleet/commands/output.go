package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/orchestrator"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	return row
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusText(status engine.OperationStatus) string {
	switch status {
	case engine.StatusSuccess:
		return text.FgGreen.Sprint(status)
	case engine.StatusFailed:
		return text.FgRed.Sprint(status)
	default:
		return text.FgYellow.Sprint(status)
	}
}

// printResult renders a finished run. A FAILED signal becomes the
// command's error so the exit code reflects it.
func printResult(out io.Writer, result *orchestrator.Result) error {
	signal := result.Signal

	if jsonOutput {
		if err := writeJSON(out, struct {
			InvocationID string                 `json:"invocation_id"`
			Ticks        int                    `json:"ticks"`
			Retries      int                    `json:"retries"`
			TimedOut     bool                   `json:"timed_out"`
			Signal       *engine.ProgressSignal `json:"signal"`
		}{result.InvocationID, result.Ticks, result.Retries, result.TimedOut, signal}); err != nil {
			return err
		}
	} else {
		t := newTable(out)
		t.AppendHeader(header("KEY", "VALUE"))
		t.AppendRow(table.Row{"invocation", result.InvocationID})
		t.AppendRow(table.Row{"operation", signal.Operation})
		t.AppendRow(table.Row{"status", statusText(signal.Status)})
		t.AppendRow(table.Row{"ticks", result.Ticks})
		t.AppendRow(table.Row{"retries", result.Retries})
		t.AppendRow(table.Row{"duration", result.Duration.Round(time.Millisecond)})
		if signal.Model != nil {
			appendModelRows(t, signal.Model)
		}
		if signal.Status == engine.StatusFailed {
			t.AppendRow(table.Row{"error", fmt.Sprintf("%s: %s", signal.ErrorKind, signal.Message)})
		}
		t.Render()
	}

	return signal.Err()
}

func printModel(out io.Writer, model *engine.ResourceModel) error {
	if jsonOutput {
		return writeJSON(out, model)
	}
	t := newTable(out)
	t.AppendHeader(header("KEY", "VALUE"))
	appendModelRows(t, model)
	t.Render()
	return nil
}

func appendModelRows(t table.Writer, model *engine.ResourceModel) {
	t.AppendRow(table.Row{"fleet", model.ID})
	if model.TotalTargetCapacity != nil {
		t.AppendRow(table.Row{"target capacity", *model.TotalTargetCapacity})
	}
	if model.AllocationStrategy != "" {
		t.AppendRow(table.Row{"allocation strategy", model.AllocationStrategy})
	}
	if model.InstanceMatchCriteria != "" {
		t.AppendRow(table.Row{"instance match criteria", model.InstanceMatchCriteria})
	}
	if model.Tenancy != "" {
		t.AppendRow(table.Row{"tenancy", model.Tenancy})
	}
	if model.EndDate != nil {
		t.AppendRow(table.Row{"end date", model.EndDate.UTC().Format("2006-01-02T15:04:05Z")})
	}
	if len(model.InstanceTypeSpecifications) > 0 {
		types := make([]string, 0, len(model.InstanceTypeSpecifications))
		for _, spec := range model.InstanceTypeSpecifications {
			types = append(types, spec.InstanceType)
		}
		t.AppendRow(table.Row{"instance types", strings.Join(types, ", ")})
	}
	for _, spec := range model.TagSpecifications {
		for _, tag := range spec.Tags {
			t.AppendRow(table.Row{"tag " + tag.Key, tag.Value})
		}
	}
}
