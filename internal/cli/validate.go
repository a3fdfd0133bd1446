package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

func newValidateCmd() *cobra.Command {
	opts := storeOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Resolve every mapping file in the store and report failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _, err := opts.resolve()
			if err != nil {
				return err
			}
			return runValidate(cmd, dir)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runValidate(cmd *cobra.Command, dir string) error {
	cat := mappingstore.NewCatalog(dir)
	res, err := cat.Reload(context.Background())
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	out := cmd.OutOrStdout()
	for _, is := range res.Issues {
		if _, err := fmt.Fprintf(out, "INVALID %s kind=%s: %v\n", is.Path, is.Kind, is.Err); err != nil {
			return err
		}
	}
	if len(res.Issues) > 0 {
		return fmt.Errorf("%d of %d mapping files failed validation", len(res.Issues), res.Entries)
	}
	_, err = fmt.Fprintf(out, "OK %d mapping files in %s\n", res.Entries, dir)
	return err
}
