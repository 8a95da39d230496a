package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "resume [invocation-id]",
		Short: "Resume an interrupted run",
		Long: `Resume a journaled run from its last tick.

Runs are left running when the process stops before they finish. Resume
continues one of them, or every one of them with --all.`,
		Example: `  # Resume one run
  crfleet resume 8d6f3c1e-1c1b-4d8e-9a51-3f1f1b2c9d10

  # Resume everything left running
  crfleet resume --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("an invocation id cannot be combined with --all")
			}
			if !all && len(args) != 1 {
				return errors.New("requires an invocation id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !all {
					result, err := a.driver.Resume(ctx, args[0])
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), result)
				}

				results, err := a.driver.ResumeAll(ctx)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					log.Info().Msg("No runs to resume")
					return nil
				}

				var failed int
				for _, result := range results {
					if err := printResult(cmd.OutOrStdout(), result); err != nil {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d resumed runs failed", failed, len(results))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "resume every run left running")

	return cmd
}
