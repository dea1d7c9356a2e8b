package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnolang/undertaker/internal/logic"
	"github.com/gnolang/undertaker/internal/model"
)

func newModelCmd(root *rootOptions) *cobra.Command {
	var sat string
	cmd := &cobra.Command{
		Use:   "model FILE [symbols...]",
		Short: "Inspect a configuration model",
		Long: `Inspect a configuration model.

Without symbols the command prints a summary of the model. Each given
symbol is looked up and printed with its type. --sat decides a
preprocessor expression over the model symbols.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.LoadCnf(args[0],
				model.WithTimeout(root.config.QueryTimeout),
				model.WithPrefix(root.config.Prefix),
				model.WithLogger(root.logger),
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 && sat == "" {
				fmt.Fprintf(out, "model:    %s (%s)\n", m.Name(), m.VersionIdentifier())
				fmt.Fprintf(out, "symbols:  %d\n", len(m.Symbols()))
				for _, key := range []string{model.MetaAlwaysOn, model.MetaAlwaysOff, model.MetaIncomplete, model.MetaConfigRegexp} {
					if v, ok := m.MetaValue(key); ok {
						fmt.Fprintf(out, "%s: %s\n", key, strings.Join(v, " "))
					}
				}
				return nil
			}

			for _, symbol := range args[1:] {
				if m.ContainsSymbol(symbol) {
					fmt.Fprintf(out, "%s: %s\n", symbol, m.Type(symbol))
				} else {
					fmt.Fprintf(out, "%s: not in model\n", symbol)
				}
			}

			if sat != "" {
				return decide(cmd, m, sat)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sat, "sat", "", "Expression to decide against the model")
	return cmd
}

func decide(cmd *cobra.Command, m model.Model, expr string) error {
	node, err := logic.Parse(expr)
	if err != nil {
		return err
	}
	f := logic.Translate(node, logic.ResolverFunc(func(name string) logic.Formula {
		return logic.Var{Name: name}
	}))

	ans, err := m.Satisfiable(cmd.Context(), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ans.Verdict)
	names := make([]string, 0, len(ans.Assignment))
	for name := range ans.Assignment {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s=%t\n", name, ans.Assignment[name])
	}
	return nil
}
