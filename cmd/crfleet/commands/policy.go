package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/config"
	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and test admission policies",
		Long: `Admission policies are Rego modules checked before every create and
update. Built-in policies can be disabled and custom ones loaded from the
paths in the policy section of the config file.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyCheckCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.policy == nil {
					return errors.New("policies are disabled in the configuration")
				}

				policies := a.policy.ListPolicies()
				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, policies)
				}

				t := newTable(out)
				t.AppendHeader(header("POLICY", "SEVERITY", "ENABLED", "SOURCE", "DESCRIPTION"))
				for _, p := range policies {
					source := p.Source
					if source == "" {
						source = "built-in"
					}
					t.AppendRow(table.Row{p.Name, p.Severity, p.Enabled, source, p.Description})
				}
				t.Render()
				return nil
			})
		},
	}
}

func newPolicyCheckCommand() *cobra.Command {
	var (
		fleetID   string
		modelFile string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a model against the policies without changing anything",
		Long: `Evaluate a model as a create, or as an update of --id, and print every
violation and warning.`,
		Example: `  crfleet policy check --model fleet.yaml
  crfleet policy check --model fleet.yaml --id crf-0123456789abcdef0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := config.LoadModel(modelFile)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if a.policy == nil {
					return errors.New("policies are disabled in the configuration")
				}

				input := &policy.Input{
					Operation:    engine.OperationCreate,
					Model:        model,
					StackTags:    a.cfg.Tags.Stack,
					SystemTags:   a.cfg.Tags.System,
					RequiredTags: a.cfg.Policy.RequiredTags,
					Environment:  a.cfg.Environment,
				}
				if fleetID != "" {
					previous, err := a.current(ctx, fleetID)
					if err != nil {
						return err
					}
					desired := model.WithID(fleetID)
					input.Operation = engine.OperationUpdate
					input.Model = &desired
					input.Previous = previous
				}

				result, err := a.policy.Evaluate(ctx, input)
				if err != nil {
					return err
				}
				if err := printPolicyResult(cmd, result); err != nil {
					return err
				}
				return result.Err()
			})
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "fleet model file (YAML or JSON)")
	cmd.Flags().StringVar(&fleetID, "id", "", "check as an update of this fleet")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func printPolicyResult(cmd *cobra.Command, result *policy.Result) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, result)
	}

	if len(result.Violations) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintf(out, "%s %d policies passed\n", text.FgGreen.Sprint("✓"), len(result.EvaluatedPolicies))
		return nil
	}

	t := newTable(out)
	t.AppendHeader(header("POLICY", "SEVERITY", "MESSAGE"))
	for _, v := range result.Violations {
		t.AppendRow(table.Row{v.Policy, text.FgRed.Sprint(v.Severity), v.Message})
	}
	for _, v := range result.Warnings {
		t.AppendRow(table.Row{v.Policy, text.FgYellow.Sprint(v.Severity), v.Message})
	}
	t.Render()
	return nil
}
