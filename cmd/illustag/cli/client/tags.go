package client

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/agent"
	"github.com/mwantia/illustag/pkg/db/models"
)

func NewTagsCommand() *cobra.Command {
	var output string
	var mode string

	cmd := &cobra.Command{
		Use:   "tags <image-id>",
		Short: "Show the estimated tags of a library image",
		Long: `Show the estimated tags of a library image together with their curation status.

Estimations are computed once per checksum and mode; later calls read the cached rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			m, err := models.ParseMode(mode)
			if err != nil {
				return err
			}
			id, err := parseID("image id", args[0])
			if err != nil {
				return err
			}

			return withRuntime(cmd, func(ctx context.Context, rt *agent.Runtime) error {
				image, err := rt.Library.Get(ctx, id)
				if err != nil {
					return err
				}

				est, err := rt.Cache.GetEstimations(ctx, image.Checksum, m)
				if err != nil {
					return err
				}
				if err := rt.Ledger.Overlay(ctx, image.ChecksumID, est); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if output != outputDefault {
					return writeJSON(out, output, map[string]any{
						"image":       image.ID,
						"checksum":    image.Checksum.Value,
						"checksum_id": image.ChecksumID,
						"mode":        m,
						"tags":        est,
					})
				}

				fmt.Fprintf(out, "image: %d\nsha256: %s\nmode: %s\n", image.ID, image.Checksum.Value, m)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CATEGORY\tTAG ID\tTAG\tCONFIDENCE\tSTATUS")
				for _, category := range categories(est) {
					for _, entry := range est[category] {
						fmt.Fprintf(w, "%s\t%d\t%s\t%.4f\t%s\n", category, entry.TagID, entry.Value, entry.Confidence, entry.Status)
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputDefault, "output format (default, pprint, json)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModePlausible), "estimation mode (plausible, top, all)")

	return cmd
}
