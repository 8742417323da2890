package main

import (
	"errors"
	"fmt"

	"mintdrop/internal/drop"
	"mintdrop/internal/present"

	"github.com/spf13/cobra"
)

func newClaimCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "claim <slug>",
		Short: "Connect the wallet and claim one token from a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := newLineWriter(cmd.OutOrStdout())

			app, err := wireApp(ctx, cmd.InOrStdin(), out, yes)
			if err != nil {
				return err
			}
			defer app.close()

			if _, err := app.session.Connect(ctx); err != nil {
				return fmt.Errorf("connect wallet: %w", err)
			}

			collection, coord, err := app.openDrop(ctx, args[0])
			if err != nil {
				return err
			}
			if err := out.println(renderDrop(collection, coord.Snapshot())); err != nil {
				return err
			}

			events, unsubscribe := coord.Subscribe(8)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for ev := range events {
					if ev.Kind == drop.EventPending {
						_ = out.println(present.PendingNotification())
					}
				}
			}()
			outcome, err := coord.Submit(ctx, app.session.CurrentIdentity())
			unsubscribe()
			<-drained

			var notReady *drop.NotReadyError
			if errors.As(err, &notReady) {
				return fmt.Errorf("cannot claim: %s", notReady.Reason)
			}
			if err != nil {
				return err
			}

			if err := out.println(renderOutcome(outcome)); err != nil {
				return err
			}
			if err := out.println(renderDrop(collection, coord.Snapshot())); err != nil {
				return err
			}
			if outcome.Failed() {
				return fmt.Errorf("claim %s", outcome.Kind)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Approve wallet prompts without asking")
	return cmd
}
