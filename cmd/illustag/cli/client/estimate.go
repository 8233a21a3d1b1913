package client

import (
	"fmt"
	"image"
	"io"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/agent"
	"github.com/mwantia/illustag/pkg/db/models"
	"github.com/mwantia/illustag/pkg/hasher"
	"github.com/mwantia/illustag/pkg/oracle"
)

func NewEstimateCommand() *cobra.Command {
	var output string
	var mode string

	cmd := &cobra.Command{
		Use:   "estimate <image>...",
		Short: "Estimate tags for local images",
		Long: `Run the configured oracle on local image files and print the estimated tags.

Nothing is stored; use "image add" to upload an image and cache its estimations.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			m, err := models.ParseMode(mode)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			o, err := agent.NewOracle(cfg.Oracle, logger)
			if err != nil {
				return err
			}
			if closer, ok := o.(io.Closer); ok {
				defer closer.Close()
			}
			aggregator := oracle.NewAggregator(o)

			out := cmd.OutOrStdout()
			for i, path := range args {
				sum, err := hasher.HashFile(path)
				if err != nil {
					return err
				}
				img, err := decode(path)
				if err != nil {
					return err
				}

				result, err := aggregator.EstimateMode(cmd.Context(), img, oracle.Strategy(m))
				if err != nil {
					return fmt.Errorf("failed to estimate %s: %w", path, err)
				}

				if output != outputDefault {
					if err := writeJSON(out, output, map[string]any{
						"image":  path,
						"sha256": sum,
						"mode":   m,
						"tags":   result,
					}); err != nil {
						return err
					}
					continue
				}

				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "image: %s\nsha256: %s\n", path, sum)
				if err := writeResult(out, output, result); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputDefault, "output format (default, pprint, json)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModePlausible), "estimation mode (plausible, top, all)")

	return cmd
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
