package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/undertaker/formatter"
)

type blocksOptions struct {
	model      string
	expand     bool
	jsonOutput bool
}

func newBlocksCmd(root *rootOptions) *cobra.Command {
	opts := &blocksOptions{}
	cmd := &cobra.Command{
		Use:   "blocks FILE",
		Short: "Print the conditional block tree of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := root.runContext(cmd.Context())
			defer cancel()

			engine, err := root.newEngine(opts.model)
			if err != nil {
				return err
			}
			unit, _, err := engine.Parse(args[0])
			if err != nil {
				return err
			}
			res, err := engine.Analyze(ctx, unit)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return formatter.WriteBlocksJSON(cmd.OutOrStdout(), res, opts.expand)
			}
			if res.Model != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (model %s)\n", args[0], res.Model)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.GenerateBlockListing(res, opts.expand))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Configuration model to classify against")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "Show conditions with macros expanded")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output blocks in JSON format")
	return cmd
}
