package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
)

type resolveOptions struct {
	store   storeOptions
	mapping string
}

func newResolveCmd() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print a mapping document with its extends chain merged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}
	opts.store.bind(cmd)
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "mapping path inside the store")
	return cmd
}

func runResolve(cmd *cobra.Command, opts resolveOptions) error {
	m := strings.TrimLeft(strings.TrimSpace(opts.mapping), "/")
	if m == "" {
		return errors.New("--mapping is required")
	}
	dir, root, err := opts.store.resolve()
	if err != nil {
		return err
	}
	store, err := mappingstore.OpenFS(dir)
	if err != nil {
		return fmt.Errorf("open mapping store %s: %w", dir, err)
	}
	defer func() { _ = store.Close() }()

	doc, err := mapping.Resolve(context.Background(), store, mappingstore.ApplyRoot(m, root), mapping.NewCache())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), doc)
}
