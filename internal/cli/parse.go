package cli

import (
	"github.com/spf13/cobra"

	"github.com/r9s-ai/x12-mapper/pkg/x12"
)

type parseOutput struct {
	Delimiters x12.Delimiters `json:"delimiters"`
	Segments   []x12.Segment  `json:"segments"`
}

func newParseCmd() *cobra.Command {
	var withDelimiters bool
	cmd := &cobra.Command{
		Use:   "parse [edi_file|-]",
		Short: "Print the segments of an X12 file as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := defaultSampleFile
			if len(args) == 1 {
				input = args[0]
			}
			text, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			segments, d, err := x12.ParseDetect(text)
			if err != nil {
				return err
			}
			if withDelimiters {
				return writeJSON(cmd.OutOrStdout(), parseOutput{Delimiters: d, Segments: segments})
			}
			return writeJSON(cmd.OutOrStdout(), segments)
		},
	}
	cmd.Flags().BoolVar(&withDelimiters, "delimiters", false, "include the detected delimiters")
	return cmd
}
