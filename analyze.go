package jvmtype

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/classfile"
)

// AnalyzeMethod computes the frames of a single method declared in the class
// with internal name owner.
func AnalyzeMethod(owner string, m *bytecode.Method) (*Result, error) {
	return analyzeWith(newAnalyzer(nil), owner, m)
}

func newAnalyzer(logger *zap.Logger) *analysis.Analyzer[*Value] {
	return analysis.NewAnalyzer[*Value](Interpreter{}, analysis.Options{Logger: logger})
}

func analyzeWith(a *analysis.Analyzer[*Value], owner string, m *bytecode.Method) (*Result, error) {
	frames, err := a.Analyze(owner, m)
	if err != nil {
		return nil, err
	}
	return &Result{Owner: owner, Method: m, Frames: frames}, nil
}

type AnalysisConfig struct {
	Classes []*classfile.Class

	// Workers bounds the number of methods analyzed concurrently.
	// Defaults to GOMAXPROCS.
	Workers int

	// When FailFast is true the first failing method aborts the analysis.
	// Otherwise failures are collected in Results.Failures.
	FailFast bool

	// Filter selects the methods to analyze. All methods with code are
	// analyzed when it is nil.
	Filter func(owner string, m *bytecode.Method) bool

	Logger *zap.Logger
}

// Failure records a method whose analysis failed.
type Failure struct {
	Owner  string
	Method *bytecode.Method
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s.%s%s: %v", f.Owner, f.Method.Name, f.Method.Desc, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

type Results struct {
	// Methods holds the results in class and declaration order.
	Methods  []*Result
	Failures []Failure
}

// Lookup returns the result for the method with the given owner, name and
// descriptor, or nil.
func (r *Results) Lookup(owner, name, descriptor string) *Result {
	for _, res := range r.Methods {
		if res.Owner == owner && res.Method.Name == name && res.Method.Desc == descriptor {
			return res
		}
	}
	return nil
}

// Analyze analyzes every selected method of the configured classes.
// Methods are analyzed in parallel; cancelling ctx stops scheduling new
// methods and returns the context's error.
func Analyze(ctx context.Context, config AnalysisConfig) (*Results, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type job struct {
		owner string
		m     *bytecode.Method
	}
	var jobs []job
	for _, c := range config.Classes {
		for _, m := range c.Methods {
			if !m.HasCode() || (config.Filter != nil && !config.Filter(c.Name, m)) {
				continue
			}
			jobs = append(jobs, job{c.Name, m})
		}
	}

	logger.Info("analyzing methods",
		zap.Int("classes", len(config.Classes)),
		zap.Int("methods", len(jobs)),
		zap.Int("workers", workers))

	a := newAnalyzer(logger)
	results := make([]*Result, len(jobs))
	failures := make([]error, len(jobs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		i, j := i, j
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := analyzeWith(a, j.owner, j.m)
			if err != nil {
				f := Failure{j.owner, j.m, err}
				if config.FailFast {
					return f
				}
				logger.Warn("analysis failed", zap.Error(f))
				failures[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Results{}
	for i, j := range jobs {
		if results[i] != nil {
			out.Methods = append(out.Methods, results[i])
		} else if failures[i] != nil {
			out.Failures = append(out.Failures, Failure{j.owner, j.m, failures[i]})
		}
	}

	logger.Info("analysis done",
		zap.Int("analyzed", len(out.Methods)),
		zap.Int("failed", len(out.Failures)))
	return out, nil
}
