package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/undertaker/analyze"
	"github.com/gnolang/undertaker/formatter"
	"github.com/gnolang/undertaker/internal"
	tt "github.com/gnolang/undertaker/internal/types"
)

const stdinName = "<stdin>"

type deadOptions struct {
	model       string
	ignoreRules string
	exclude     []string
	jsonOutput  bool
	outPath     string
	witness     bool
	progress    bool
}

func newDeadCmd(root *rootOptions) *cobra.Command {
	opts := &deadOptions{}
	cmd := &cobra.Command{
		Use:   "dead [paths...]",
		Short: "Report dead and undead conditional blocks",
		Long: `Report dead and undead conditional blocks of C sources.

Directories are searched for sources recursively. A single "-" reads one
source from stdin. The command fails when a defect is found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDead(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Configuration model (.cnf, optionally .gz/.zst/.xz)")
	cmd.Flags().StringVar(&opts.ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Glob patterns of paths to skip")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output defects in JSON format")
	cmd.Flags().StringVarP(&opts.outPath, "output", "o", "", "Output path (when using JSON)")
	cmd.Flags().BoolVar(&opts.witness, "witness", false, "Attach a symbol assignment to model defects")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "Show a progress bar on terminals")
	return cmd
}

// runContext bounds ctx by the configured timeout, if any.
func (o *rootOptions) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.Timeout > 0 {
		return context.WithTimeout(ctx, o.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func (o *rootOptions) newEngine(model string, engineOpts ...internal.Option) (*internal.Engine, error) {
	config := o.config
	if model != "" {
		config.Model = model
	}
	engine, err := analyze.New(config, o.logger, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return engine, nil
}

func runDead(cmd *cobra.Command, root *rootOptions, opts *deadOptions, args []string) error {
	ctx, cancel := root.runContext(cmd.Context())
	defer cancel()

	engine, err := root.newEngine(opts.model, internal.WithWitness(opts.witness))
	if err != nil {
		return err
	}
	for _, rule := range splitList(opts.ignoreRules) {
		engine.IgnoreRule(rule)
	}

	var (
		defects []tt.Defect
		sources = make(map[string]*internal.SourceCode)
	)
	if len(args) == 1 && args[0] == "-" {
		src, readErr := io.ReadAll(cmd.InOrStdin())
		if readErr != nil {
			return readErr
		}
		sources[stdinName] = &internal.SourceCode{Lines: strings.Split(string(src), "\n")}
		defects, err = analyze.ProcessSource(ctx, engine, stdinName, src)
	} else {
		defects, err = analyze.ProcessFiles(ctx, root.logger, engine, args, analyze.ProcessFile,
			analyze.WithExtensions(root.config.Extensions...),
			analyze.WithExclude(append(root.config.Exclude, opts.exclude...)...),
			analyze.WithProgress(opts.progress && !opts.jsonOutput),
		)
	}

	if printErr := printDefects(cmd, root.logger, defects, sources, opts); printErr != nil {
		return printErr
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("analysis timed out after %s: %w", root.config.Timeout, err)
		}
		return err
	}
	if len(defects) > 0 {
		return ErrDefects
	}
	return nil
}

func printDefects(cmd *cobra.Command, logger *zap.Logger, defects []tt.Defect, sources map[string]*internal.SourceCode, opts *deadOptions) error {
	if opts.jsonOutput {
		if opts.outPath == "" {
			return formatter.WriteJSON(cmd.OutOrStdout(), defects)
		}
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("error creating JSON output file: %w", err)
		}
		defer f.Close()
		return formatter.WriteJSON(f, defects)
	}

	defectsByFile := make(map[string][]tt.Defect)
	for _, d := range defects {
		defectsByFile[d.Filename] = append(defectsByFile[d.Filename], d)
	}
	sortedFiles := make([]string, 0, len(defectsByFile))
	for filename := range defectsByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)

	out := cmd.OutOrStdout()
	for _, filename := range sortedFiles {
		sourceCode, ok := sources[filename]
		if !ok {
			var err error
			sourceCode, err = internal.ReadSourceCode(filename)
			if err != nil {
				logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
				continue
			}
		}
		fmt.Fprint(out, formatter.GenerateFormattedDefects(defectsByFile[filename], sourceCode))
	}
	fmt.Fprintln(cmd.ErrOrStderr(), formatter.Summary(defects))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
