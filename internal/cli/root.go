// Package cli implements x12map-admin, the offline companion of the mapping
// service: it maps, parses and validates against a local mapping directory.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/x12-mapper/internal/config"
)

const (
	defaultConfigPath = "x12map.yaml"
	defaultStoreDir   = "config/x12-mappings"
)

// Execute runs x12map-admin with args.
func Execute(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "x12map-admin",
		Short:         "Map, parse and validate X12 documents against local mapping files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMapCmd(),
		newResolveCmd(),
		newParseCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

// storeOptions locate the local mapping store shared by map, resolve and
// validate.
type storeOptions struct {
	cfgPath string
	dir     string
}

func (o *storeOptions) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&o.cfgPath, "config", "c", defaultConfigPath, "service config yaml, used for defaults when present")
	fs.StringVar(&o.dir, "root", "", "mapping store directory (default: <mappings.dir>/<mappings.container> or "+defaultStoreDir+")")
}

// loadConfigIfExists returns nil when path does not exist.
func loadConfigIfExists(path string) (*config.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

// resolve returns the store directory and the mapping root prefix.
func (o *storeOptions) resolve() (string, string, error) {
	cfg, err := loadConfigIfExists(o.cfgPath)
	if err != nil {
		return "", "", err
	}
	root := config.Default().Mappings.Root
	if cfg != nil {
		root = cfg.Mappings.Root
	}
	if dir := strings.TrimSpace(o.dir); dir != "" {
		return dir, root, nil
	}
	if cfg != nil {
		return filepath.Join(cfg.MappingDir(), cfg.Mappings.Container), root, nil
	}
	return defaultStoreDir, root, nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	// #nosec G304 -- path is an operator supplied CLI argument.
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
