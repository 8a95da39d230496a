package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/watch"
)

func newWatchCommand() *cobra.Command {
	var (
		fleetID   string
		modelFile string
		debounce  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update a fleet every time its model file changes",
		Long: `Watch a model file and drive an update of the fleet each time the file
is saved. Revisions that fail to parse are logged and skipped; failed
updates are logged and watching continues. Stop with Ctrl-C.`,
		Example: `  crfleet watch --id crf-0123456789abcdef0 --model fleet.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				w, err := watch.NewModelWatcher(log.Logger, modelFile, debounce)
				if err != nil {
					return err
				}

				apply := func(ctx context.Context, model *engine.ResourceModel) error {
					return a.update(ctx, cmd, fleetID, model)
				}
				if err := w.Start(ctx, apply); err != nil {
					return err
				}

				<-w.Done()
				log.Info().Msg("Stopped watching")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fleetID, "id", "", "fleet identifier")
	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "fleet model file to watch")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "wait for writes to settle before applying")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}
