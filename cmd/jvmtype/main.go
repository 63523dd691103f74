// Command jvmtype prints the inferred types of the locals and the operand
// stack before every instruction of the methods in class files, jar archives,
// directories of class files, or YAML method listings.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"

	"go.uber.org/zap"

	"github.com/BarrensZeppelin/jvmtype"
	"github.com/BarrensZeppelin/jvmtype/classfile"
	"github.com/BarrensZeppelin/jvmtype/listing"
	"github.com/BarrensZeppelin/jvmtype/loader"
)

var (
	configFile  = flag.String("config", "", "read configuration from TOML `file`")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to `file`")
	workers     = flag.Int("workers", 0, "number of methods analyzed in parallel (default GOMAXPROCS)")
	failFast    = flag.Bool("fail-fast", false, "stop at the first method that fails to analyze")
	verbose     = flag.Bool("v", false, "enable debug logging")
	descriptors = flag.Bool("descriptors", false, "print full descriptors instead of R for references")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

// run executes the command and returns the exit status. Deferred cleanup,
// such as stopping the CPU profile, has completed when it returns.
func run() int {
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Specify class files, jars, directories or .yaml listings on the command line")
		flag.Usage()
		return 2
	}

	config := &Config{}
	if *configFile != "" {
		var err error
		if config, err = LoadConfig(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			config.Workers = *workers
		case "fail-fast":
			config.FailFast = *failFast
		case "v":
			config.Verbose = *verbose
		case "descriptors":
			if *descriptors {
				config.Format = "descriptors"
			}
		}
	})

	logger := newLogger(config.Verbose)
	defer logger.Sync()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logger.Fatal("could not create CPU profile", zap.Error(err))
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Error("failed to close CPU profile", zap.Error(err))
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Error("could not start CPU profile", zap.Error(err))
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	classes, err := load(logger, flag.Args())
	if err != nil {
		if !errors.Is(err, loader.ErrLoad) || len(classes) == 0 {
			logger.Error("loading classes failed", zap.Error(err))
			return 1
		}
		logger.Warn("some classes failed to load", zap.Error(err))
	}
	logger.Info("loaded classes", zap.Int("classes", len(classes)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := jvmtype.Analyze(ctx, jvmtype.AnalysisConfig{
		Classes:  classes,
		Workers:  config.Workers,
		FailFast: config.FailFast,
		Filter:   config.filter(),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("analysis failed", zap.Error(err))
		return 1
	}

	out := bufio.NewWriter(os.Stdout)
	for _, r := range res.Methods {
		if err := r.Format(out, config.Format == "descriptors"); err != nil {
			logger.Error("writing output failed", zap.Error(err))
			return 1
		}
		fmt.Fprintln(out)
	}
	if err := out.Flush(); err != nil {
		logger.Error("writing output failed", zap.Error(err))
		return 1
	}

	for _, f := range res.Failures {
		fmt.Fprintln(os.Stderr, f)
	}
	if len(res.Failures) > 0 {
		return 1
	}
	return 0
}

func newLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Encoding = "console"
		logger, err = cfg.Build()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(2)
	}
	return logger
}

// load reads the classes of the given paths. YAML files are method listings,
// anything else is handed to the class loader.
func load(logger *zap.Logger, paths []string) ([]*classfile.Class, error) {
	var listed, files []string
	for _, p := range paths {
		switch filepath.Ext(p) {
		case ".yaml", ".yml":
			listed = append(listed, p)
		default:
			files = append(files, p)
		}
	}

	var classes []*classfile.Class
	var loadErr error
	if len(files) > 0 {
		classes, loadErr = loader.LoadWithConfig(&loader.Config{Logger: logger}, files...)
		if loadErr != nil && !errors.Is(loadErr, loader.ErrLoad) {
			return nil, loadErr
		}
	}

	for _, p := range listed {
		f, err := listing.Load(p)
		if err != nil {
			return nil, err
		}
		cs, err := f.Classes()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		classes = append(classes, cs...)
	}
	return classes, loadErr
}
