package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/config"
	"github.com/openfroyo/crfleet/pkg/engine"
)

func newCreateCommand() *cobra.Command {
	var (
		modelFile   string
		clientToken string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fleet and wait for it to stabilize",
		Long: `Create a capacity reservation fleet from a model file.

The command submits the fleet, then polls until it is active or partially
fulfilled. Configured stack and system tags are added to the fleet's tags.
The model is checked against the admission policies first.`,
		Example: `  # Create a fleet from a YAML model
  crfleet create --model fleet.yaml

  # Retry-safe create
  crfleet create --model fleet.yaml --client-token deploy-42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := config.LoadModel(modelFile)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.admit(ctx, engine.OperationCreate, model, nil); err != nil {
					return err
				}

				req := a.request(engine.OperationCreate)
				req.DesiredModel = model
				req.ClientToken = clientToken
				return a.run(ctx, cmd, req)
			})
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "fleet model file (YAML or JSON)")
	cmd.Flags().StringVar(&clientToken, "client-token", "", "idempotency token for the create call")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func newReadCommand() *cobra.Command {
	var fleetID string

	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Show a fleet",
		Example: `  crfleet read --id crf-0123456789abcdef0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				model, err := a.current(ctx, fleetID)
				if err != nil {
					return err
				}
				return printModel(cmd.OutOrStdout(), model)
			})
		},
	}

	cmd.Flags().StringVar(&fleetID, "id", "", "fleet identifier")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newUpdateCommand() *cobra.Command {
	var (
		fleetID   string
		modelFile string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a fleet and wait for the change to stabilize",
		Long: `Update a fleet's target capacity or end date from a model file.

The target capacity is sent whenever the model sets it. Set
remove_end_date to clear the end date, or no_remove_end_date together with
end_date to change it; a model may not carry both flags.

The fleet's current state is read first. It is checked against the model's
identifier and handed to the admission policies as the previous model.`,
		Example: `  crfleet update --id crf-0123456789abcdef0 --model fleet.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := config.LoadModel(modelFile)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.update(ctx, cmd, fleetID, model)
			})
		},
	}

	cmd.Flags().StringVar(&fleetID, "id", "", "fleet identifier")
	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "desired fleet model file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

// update drives an Update of fleetID towards model.
func (a *app) update(ctx context.Context, cmd *cobra.Command, fleetID string, model *engine.ResourceModel) error {
	if model.ID != "" && model.ID != fleetID {
		return fmt.Errorf("model is for fleet %s, not %s", model.ID, fleetID)
	}

	previous, err := a.current(ctx, fleetID)
	if err != nil {
		return err
	}

	desired := model.WithID(fleetID)
	if err := a.admit(ctx, engine.OperationUpdate, &desired, previous); err != nil {
		return err
	}

	req := a.request(engine.OperationUpdate)
	req.DesiredModel = &desired
	req.PreviousModel = previous
	return a.run(ctx, cmd, req)
}

func newDeleteCommand() *cobra.Command {
	var fleetID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Cancel a fleet and wait until it is cancelled",
		Long: `Cancel a fleet. Fleets that are already gone or in a terminal state
are treated as deleted.`,
		Example: `  crfleet delete --id crf-0123456789abcdef0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				req := a.request(engine.OperationDelete)
				req.DesiredModel = &engine.ResourceModel{ID: fleetID}
				return a.run(ctx, cmd, req)
			})
		},
	}

	cmd.Flags().StringVar(&fleetID, "id", "", "fleet identifier")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
