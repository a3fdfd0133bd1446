package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/x12-mapper/pkg/mapengine"
	"github.com/r9s-ai/x12-mapper/pkg/mapping"
	"github.com/r9s-ai/x12-mapper/pkg/mappingstore"
	"github.com/r9s-ai/x12-mapper/pkg/x12"
)

const (
	defaultSampleFile  = "samples/850_acme.edi"
	defaultMappingPath = "clients/acme/850.json"
)

type mapOptions struct {
	store storeOptions

	mapping        string
	transactionSet string
	client         string
	includeMeta    bool

	elementSep   string
	segmentSep   string
	componentSep string
}

func newMapCmd() *cobra.Command {
	opts := mapOptions{}
	cmd := &cobra.Command{
		Use:   "map [edi_file|-]",
		Short: "Map an X12 file to JSON with a local mapping document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := defaultSampleFile
			if len(args) == 1 {
				input = args[0]
			}
			return runMap(cmd, opts, input)
		},
	}
	opts.store.bind(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&opts.mapping, "mapping", "m", "", "mapping path inside the store (default "+defaultMappingPath+" under the mapping root)")
	fs.StringVarP(&opts.transactionSet, "transaction-set", "t", "", "select <root>/standards/<set>.json, or the client mapping with --client")
	fs.StringVar(&opts.client, "client", "", "client name used with --transaction-set")
	fs.BoolVar(&opts.includeMeta, "include-meta", false, "wrap output with mappingPath and segmentCount")
	fs.StringVar(&opts.elementSep, "element-separator", "", "override the detected element separator")
	fs.StringVar(&opts.segmentSep, "segment-separator", "", "override the detected segment separator")
	fs.StringVar(&opts.componentSep, "component-separator", "", "override the detected component separator")
	return cmd
}

func runMap(cmd *cobra.Command, opts mapOptions, input string) error {
	dir, root, err := opts.store.resolve()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	d := x12.DetectDelimiters(text).WithOverrides(
		changedString(cmd, "element-separator", opts.elementSep),
		changedString(cmd, "segment-separator", opts.segmentSep),
		changedString(cmd, "component-separator", opts.componentSep),
	)
	segments, err := x12.Parse(text, d)
	if err != nil {
		return err
	}

	mappingPath := selectMappingPath(opts, root)
	store, err := mappingstore.OpenFS(dir)
	if err != nil {
		return fmt.Errorf("open mapping store %s: %w", dir, err)
	}
	defer func() { _ = store.Close() }()

	doc, err := mapping.Resolve(context.Background(), store, mappingPath, mapping.NewCache())
	if err != nil {
		return err
	}
	out := mapengine.Apply(segments, doc)
	if opts.includeMeta {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"mappingPath":  mappingPath,
			"segmentCount": len(segments),
			"output":       out,
		})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func selectMappingPath(opts mapOptions, root string) string {
	if m := strings.TrimLeft(strings.TrimSpace(opts.mapping), "/"); m != "" {
		return mappingstore.ApplyRoot(m, root)
	}
	if ts := strings.TrimSpace(opts.transactionSet); ts != "" {
		return mappingstore.DefaultPath(root, strings.TrimSpace(opts.client), ts)
	}
	return mappingstore.ApplyRoot(defaultMappingPath, root)
}

// changedString returns a pointer to v only when the flag was set, so an
// explicit empty value still reaches the parser.
func changedString(cmd *cobra.Command, name, v string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
