package conformance

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BarrensZeppelin/jvmtype"
	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/internal/maps"
)

// DefaultOwner is the class of listed methods that name none.
const DefaultOwner = "Test"

var sentinels = map[string]error{
	"IllegalConstant":          jvmtype.ErrIllegalConstant,
	"IllegalArrayLoad":         jvmtype.ErrIllegalArrayLoad,
	"IllegalArrayTag":          jvmtype.ErrIllegalArrayTag,
	"BadDescriptor":            jvmtype.ErrBadDescriptor,
	"StackUnderflow":           analysis.ErrStackUnderflow,
	"StackOverflow":            analysis.ErrStackOverflow,
	"IncompatibleStackHeights": analysis.ErrIncompatibleStackHeights,
	"IllegalStackOp":           analysis.ErrIllegalStackOp,
	"FallOffEnd":               analysis.ErrFallOffEnd,
	"IncompatibleReturn":       analysis.ErrIncompatibleReturn,
	"LocalOutOfRange":          analysis.ErrLocalOutOfRange,
	"UnknownLabel":             analysis.ErrUnknownLabel,
}

type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance tests with the type interpreter.
type Runner struct {
	analyzer *analysis.Analyzer[*jvmtype.Value]
	logger   *zap.Logger
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		analyzer: analysis.NewAnalyzer[*jvmtype.Value](jvmtype.Interpreter{}, analysis.Options{Logger: logger}),
		logger:   logger,
	}
}

func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, t := range tests {
		results[i] = r.Run(t)
	}
	return results
}

func (r *Runner) Run(t LoadedTest) TestResult {
	res := TestResult{Test: t}
	if t.Test.Skip != "" {
		res.Skipped, res.SkipReason = true, t.Test.Skip
		return res
	}

	res.Error = r.run(&t.Test)
	res.Passed = res.Error == nil
	if res.Error != nil {
		r.logger.Debug("conformance test failed",
			zap.String("file", t.File),
			zap.String("test", t.Test.Name),
			zap.Error(res.Error))
	}
	return res
}

func (r *Runner) run(tc *TestCase) error {
	ml := tc.Method
	if ml.Owner == "" {
		ml.Owner = DefaultOwner
	}
	m, err := ml.Method()
	if err != nil {
		return fmt.Errorf("assembling method: %w", err)
	}

	frames, err := r.analyzer.Analyze(ml.Owner, m)
	if tc.Error != "" {
		return checkError(tc, m, err)
	}
	if err != nil {
		return fmt.Errorf("unexpected analysis failure: %w", err)
	}

	result := &jvmtype.Result{Owner: ml.Owner, Method: m, Frames: frames}
	for _, exp := range tc.Expect {
		if err := checkFrame(result, exp); err != nil {
			return err
		}
	}
	return nil
}

func checkError(tc *TestCase, m *bytecode.Method, err error) error {
	want, ok := sentinels[tc.Error]
	if !ok {
		return fmt.Errorf("unknown error name %q, expected one of %s",
			tc.Error, strings.Join(maps.SortedKeys(sentinels), ", "))
	}
	if err == nil {
		return fmt.Errorf("expected %s, analysis succeeded", tc.Error)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("expected %s, got: %w", tc.Error, err)
	}
	if tc.ErrorAt == "" {
		return nil
	}

	at, err2 := index(m, tc.ErrorAt)
	if err2 != nil {
		return err2
	}
	var aerr *analysis.Error
	if !errors.As(err, &aerr) {
		return fmt.Errorf("expected failure at %s, got unlocated error: %w", tc.ErrorAt, err)
	}
	if aerr.Index != at {
		return fmt.Errorf("expected failure at %d, got: %w", at, err)
	}
	return nil
}

func checkFrame(res *jvmtype.Result, exp Expectation) error {
	i, err := index(res.Method, exp.At)
	if err != nil {
		return err
	}

	if exp.Unreachable {
		if res.Reachable(i) {
			return fmt.Errorf("at %s: expected unreachable instruction", exp.At)
		}
		return nil
	}
	if !res.Reachable(i) {
		return fmt.Errorf("at %s: instruction is unreachable", exp.At)
	}

	if exp.Stack != nil {
		if got := jvmtype.Descriptors(res.StackAt(i)); !slices.Equal(got, *exp.Stack) {
			return fmt.Errorf("at %s: stack is [%s], expected [%s]",
				exp.At, strings.Join(got, " "), strings.Join(*exp.Stack, " "))
		}
	}
	if exp.Locals != nil {
		if got := jvmtype.Descriptors(res.LocalsAt(i)); !slices.Equal(got, *exp.Locals) {
			return fmt.Errorf("at %s: locals are [%s], expected [%s]",
				exp.At, strings.Join(got, " "), strings.Join(*exp.Locals, " "))
		}
	}
	return nil
}

// index resolves an instruction index or a label name.
func index(m *bytecode.Method, at string) (int, error) {
	if i, err := strconv.Atoi(at); err == nil {
		if i < 0 || i >= len(m.Instructions) {
			return 0, fmt.Errorf("instruction %d out of range", i)
		}
		return i, nil
	}
	for i, insn := range m.Instructions {
		if l, ok := insn.(*bytecode.Label); ok && l.Name == at {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no label %q", at)
}

type Stats struct {
	Total, Passed, Failed, Skipped int
}

func ComputeStats(results []TestResult) Stats {
	var s Stats
	for _, r := range results {
		s.Total++
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Passed:
			s.Passed++
		default:
			s.Failed++
		}
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("total: %d, passed: %d, failed: %d, skipped: %d",
		s.Total, s.Passed, s.Failed, s.Skipped)
}
