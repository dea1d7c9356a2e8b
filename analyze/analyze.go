package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/undertaker/internal"
	"github.com/gnolang/undertaker/internal/model"
	tt "github.com/gnolang/undertaker/internal/types"
	"github.com/gnolang/undertaker/scanner"
)

type DefectEngine interface {
	Run(ctx context.Context, filePath string) ([]tt.Defect, error)
	RunSource(ctx context.Context, filename string, source []byte) ([]tt.Defect, error)
	IgnoreRule(rule string)
}

// Processor analyzes one file.
type Processor func(ctx context.Context, engine DefectEngine, path string) ([]tt.Defect, error)

// New loads the model named by config and creates the engine.
func New(config Config, logger *zap.Logger, opts ...internal.Option) (*internal.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var m model.Model
	if config.Model != "" {
		cnf, err := model.LoadCnf(config.Model,
			model.WithTimeout(config.QueryTimeout),
			model.WithPrefix(config.Prefix),
			model.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		m = cnf
	}

	opts = append([]internal.Option{
		internal.WithLogger(logger),
		internal.WithPrefix(config.Prefix),
		internal.WithQueryTimeout(config.QueryTimeout),
	}, opts...)
	return internal.NewEngine(m, config.Rules, opts...)
}

type options struct {
	extensions []string
	exclude    []string
	progress   bool
	workers    int
}

// Option configures batch processing.
type Option func(*options)

func WithExtensions(ext ...string) Option {
	return func(o *options) { o.extensions = ext }
}

func WithExclude(patterns ...string) Option {
	return func(o *options) { o.exclude = patterns }
}

// WithProgress shows a progress bar on terminals.
func WithProgress(on bool) Option {
	return func(o *options) { o.progress = on }
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ProcessFiles runs processor on every path. Failing files are logged and
// skipped; their errors are joined into the returned error.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine DefectEngine,
	paths []string,
	processor Processor,
	opts ...Option,
) ([]tt.Defect, error) {
	var (
		allDefects []tt.Defect
		errs       []error
	)
	for _, path := range paths {
		defects, err := ProcessPath(ctx, logger, engine, path, processor, opts...)
		allDefects = append(allDefects, defects...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return allDefects, ctxErr
			}
			errs = append(errs, err)
		}
	}
	return allDefects, errors.Join(errs...)
}

// ProcessPath runs processor on path, or on every source below it when it
// is a directory.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine DefectEngine,
	path string,
	processor Processor,
	opts ...Option,
) ([]tt.Defect, error) {
	o := buildOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	s := scanner.New(path, o.extensions...)
	if err := s.Exclude(o.exclude...); err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !s.IsTarget(path) {
			return nil, nil
		}
		return processor(ctx, engine, path)
	}

	files, err := s.Scan()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}

	var bar *progressbar.ProgressBar
	if o.progress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(path),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}))
	}

	var (
		mu      sync.Mutex
		defects []tt.Defect
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(o.workers)

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		fp := file.Path
		g.Go(func() error {
			fileDefects, err := processor(ctx, engine, fp)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				errs = append(errs, err)
			} else {
				defects = append(defects, fileDefects...)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	SortDefects(defects)
	if err := ctx.Err(); err != nil {
		return defects, err
	}
	return defects, errors.Join(errs...)
}

// SortDefects orders defects by file and position.
func SortDefects(defects []tt.Defect) {
	sort.SliceStable(defects, func(i, j int) bool {
		a, b := defects[i], defects[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		return a.Rule < b.Rule
	})
}

func ProcessFile(ctx context.Context, engine DefectEngine, filePath string) ([]tt.Defect, error) {
	return engine.Run(ctx, filePath)
}

func ProcessSource(ctx context.Context, engine DefectEngine, filename string, source []byte) ([]tt.Defect, error) {
	return engine.RunSource(ctx, filename, source)
}
