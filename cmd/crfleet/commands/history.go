package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history [invocation-id]",
		Short: "Show journaled runs, or the ticks of one run",
		Example: `  # Recent runs
  crfleet history

  # Runs still in progress
  crfleet history --status running

  # Every tick of one run
  crfleet history 8d6f3c1e-1c1b-4d8e-9a51-3f1f1b2c9d10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if len(args) == 1 {
					return showTicks(ctx, cmd, a.store, args[0])
				}

				var filter *stores.InvocationStatus
				if status != "" {
					s := stores.InvocationStatus(status)
					filter = &s
				}
				return showInvocations(ctx, cmd, a.store, filter, limit)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (running, succeeded, failed, timed_out)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	return cmd
}

func showInvocations(ctx context.Context, cmd *cobra.Command, store stores.Store, status *stores.InvocationStatus, limit int) error {
	invocations, err := store.ListInvocations(ctx, status, limit, 0)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, invocations)
	}
	if len(invocations) == 0 {
		fmt.Fprintln(out, text.FgYellow.Sprint("No runs found"))
		return nil
	}

	t := newTable(out)
	t.AppendHeader(header("INVOCATION", "OPERATION", "FLEET", "STATUS", "TICKS", "STARTED", "ERROR"))
	for _, inv := range invocations {
		t.AppendRow(table.Row{
			inv.ID,
			inv.Operation,
			inv.FleetID,
			invocationStatusText(inv.Status),
			inv.Ticks,
			inv.StartedAt.Local().Format(time.DateTime),
			errorText(inv.ErrorKind, inv.Error),
		})
	}
	t.Render()
	return nil
}

func showTicks(ctx context.Context, cmd *cobra.Command, store stores.Store, invocationID string) error {
	if _, err := store.GetInvocation(ctx, invocationID); err != nil {
		return err
	}
	ticks, err := store.ListTicks(ctx, invocationID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, ticks)
	}

	t := newTable(out)
	t.AppendHeader(header("SEQ", "STATUS", "ERROR", "DURATION", "AT"))
	for _, tick := range ticks {
		t.AppendRow(table.Row{
			tick.Seq,
			tick.Status,
			errorText(tick.ErrorKind, tick.Message),
			(time.Duration(tick.DurationMs) * time.Millisecond).String(),
			tick.CreatedAt.Local().Format(time.DateTime),
		})
	}
	t.Render()
	return nil
}

func invocationStatusText(status stores.InvocationStatus) string {
	switch status {
	case stores.InvocationStatusSucceeded:
		return text.FgGreen.Sprint(status)
	case stores.InvocationStatusFailed, stores.InvocationStatusTimedOut:
		return text.FgRed.Sprint(status)
	default:
		return text.FgYellow.Sprint(status)
	}
}

func errorText(kind, message *string) string {
	switch {
	case kind != nil && message != nil:
		return *kind + ": " + *message
	case kind != nil:
		return *kind
	case message != nil:
		return *message
	}
	return ""
}
