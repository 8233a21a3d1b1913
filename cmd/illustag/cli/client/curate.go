package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/agent"
)

type curateAction struct {
	use   string
	short string
	apply func(rt *agent.Runtime) func(ctx context.Context, checksumID, tagID uint) error
}

var curateActions = []curateAction{
	{"confirm", "Confirm a tag for a checksum", func(rt *agent.Runtime) func(context.Context, uint, uint) error { return rt.Ledger.Confirm }},
	{"reject", "Reject a tag for a checksum", func(rt *agent.Runtime) func(context.Context, uint, uint) error { return rt.Ledger.Reject }},
	{"unconfirm", "Withdraw a tag confirmation", func(rt *agent.Runtime) func(context.Context, uint, uint) error { return rt.Ledger.Unconfirm }},
	{"unreject", "Withdraw a tag rejection", func(rt *agent.Runtime) func(context.Context, uint, uint) error { return rt.Ledger.Unreject }},
}

func NewCurateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Record curator decisions",
		Long: `Confirm or reject estimated tags for a checksum.

Decisions apply to every image sharing the checksum and never modify the
cached estimations. A confirmed tag is reported as valid even when it was
rejected before.`,
	}

	for _, action := range curateActions {
		cmd.AddCommand(newCurateActionCommand(action))
	}

	return cmd
}

func newCurateActionCommand(action curateAction) *cobra.Command {
	return &cobra.Command{
		Use:   action.use + " <checksum-id> <tag-id>",
		Short: action.short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			checksumID, err := parseID("checksum id", args[0])
			if err != nil {
				return err
			}
			tagID, err := parseID("tag id", args[1])
			if err != nil {
				return err
			}

			return withRuntime(cmd, func(ctx context.Context, rt *agent.Runtime) error {
				if err := action.apply(rt)(ctx, checksumID, tagID); err != nil {
					return err
				}

				status, err := rt.Ledger.Classify(ctx, checksumID, tagID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checksum %d tag %d: %s\n", checksumID, tagID, status)
				return nil
			})
		},
	}
}
