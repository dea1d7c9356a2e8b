package cmd

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/undertaker/analyze"
)

// ErrDefects is returned when a run reports at least one defect.
var ErrDefects = errors.New("defects found")

type rootOptions struct {
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger
	config analyze.Config
}

// NewRootCmd builds the undertaker command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:               "undertaker [paths...]",
		Short:             "undertaker - find dead and undead preprocessor blocks",
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		TraverseChildren:  true, // Prioritize subcommands
		PersistentPreRunE: opts.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			// Format: undertaker [path1 path2 ...] => behaves like the dead subcommand
			return runDead(cmd, opts, &deadOptions{progress: true}, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.cfgFile, "config", "c", "", "Configuration file (default "+analyze.DefaultConfigFile+")")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Time limit of the whole run, overrides the configuration")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newDeadCmd(opts),
		newBlocksCmd(opts),
		newModelCmd(opts),
		newInitCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads .env, the logger and the configuration before any command.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	if err := o.setupLogger(); err != nil {
		return err
	}

	config, err := analyze.ParseConfigurationFile(o.cfgFile)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(); err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		config.Timeout = o.timeout
	}
	o.config = config
	return nil
}

func (o *rootOptions) setupLogger() error {
	// a missing .env is fine
	_ = godotenv.Load()

	var (
		logger *zap.Logger
		err    error
	)
	if o.verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return err
	}
	o.logger = logger
	return nil
}
