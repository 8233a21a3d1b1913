package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwantia/illustag/internal/agent"
	"github.com/mwantia/illustag/internal/library"
)

func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage the image library",
		Long:  "Add, list and remove images stored in the local library.",
	}

	cmd.AddCommand(NewImageAddCommand())
	cmd.AddCommand(NewImageListCommand())
	cmd.AddCommand(NewImageRemoveCommand())

	return cmd
}

func NewImageAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Add images to the library",
		Long:  "Adds local image files to the library. Files with identical content share one checksum and one stored copy.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *agent.Runtime) error {
				out := cmd.OutOrStdout()
				for _, path := range args {
					up, err := addFile(ctx, rt, path)
					if err != nil {
						return fmt.Errorf("failed to add %s: %w", path, err)
					}

					state := "added"
					if up.Duplicate {
						state = "duplicate"
					}
					fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", up.Image.ID, up.Checksum.ShortValue(), state, path)
				}
				return nil
			})
		},
	}

	return cmd
}

func addFile(ctx context.Context, rt *agent.Runtime, path string) (*library.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return rt.Library.Add(ctx, filepath.Base(path), f)
}

func NewImageListCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List library images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *agent.Runtime) error {
				images, err := rt.Library.List(ctx, limit, offset)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCHECKSUM\tSIZE\tNAME\tCREATED")
				for _, image := range images {
					fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\n", image.ID, image.ChecksumID, image.Size,
						image.OriginalName, image.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of images to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of images to skip")

	return cmd
}

func NewImageRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <image-id>...",
		Short: "Remove images from the library",
		Long:  "Removes images from the library. The stored file and its estimations are kept while another image shares the checksum.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint, 0, len(args))
			for _, arg := range args {
				id, err := parseID("image id", arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return withRuntime(cmd, func(ctx context.Context, rt *agent.Runtime) error {
				for _, id := range ids {
					if err := rt.Library.Delete(ctx, id); err != nil {
						return fmt.Errorf("failed to remove image %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", id)
				}
				return nil
			})
		},
	}

	return cmd
}
