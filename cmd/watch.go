package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/undertaker/formatter"
	"github.com/gnolang/undertaker/internal"
	tt "github.com/gnolang/undertaker/internal/types"
	"github.com/gnolang/undertaker/scanner"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Re-check sources whenever they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			engine, err := root.newEngine(modelPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd, root, engine, args)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Configuration model to classify against")
	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, root *rootOptions, engine *internal.Engine, dirs []string) error {
	s := scanner.New(".", root.config.Extensions...)
	if err := s.Exclude(root.config.Exclude...); err != nil {
		return err
	}

	var mu sync.Mutex
	out := cmd.OutOrStdout()
	return engine.Watch(ctx, dirs, internal.WatchOptions{
		IsSource: s.IsTarget,
		Report: func(path string, defects []tt.Defect, err error) {
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				return
			}
			sourceCode, err := internal.ReadSourceCode(path)
			if err != nil {
				root.logger.Error("Error reading source file", zap.String("file", path), zap.Error(err))
				return
			}
			fmt.Fprint(out, formatter.GenerateFormattedDefects(defects, sourceCode))
			fmt.Fprintf(out, "%s: %s\n", path, formatter.Summary(defects))
		},
		Ready: func() {
			root.logger.Info("watching for changes", zap.Strings("dirs", dirs))
		},
	})
}
