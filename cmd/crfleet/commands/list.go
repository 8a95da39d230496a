package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/engine"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fleet identifiers",
		Long:  `List every fleet known to the control plane, following continuation tokens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				models, err := a.listAll(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, models)
				}
				if len(models) == 0 {
					fmt.Fprintln(out, text.FgYellow.Sprint("No fleets found"))
					return nil
				}

				t := newTable(out)
				t.AppendHeader(header("FLEET"))
				for _, m := range models {
					t.AppendRow(table.Row{m.ID})
				}
				t.AppendFooter(table.Row{fmt.Sprintf("%d fleets", len(models))})
				t.Render()
				return nil
			})
		},
	}

	return cmd
}

// listAll pages through List until the provider returns no token.
func (a *app) listAll(ctx context.Context) ([]engine.ResourceModel, error) {
	var models []engine.ResourceModel

	token := ""
	for {
		req := a.request(engine.OperationList)
		req.NextToken = token

		signal := a.engine.Execute(ctx, req)
		if err := signal.Err(); err != nil {
			return nil, err
		}
		models = append(models, signal.Models...)

		if signal.NextToken == "" {
			return models, nil
		}
		token = signal.NextToken
	}
}
