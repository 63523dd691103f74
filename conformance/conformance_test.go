package conformance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BarrensZeppelin/jvmtype/listing"
)

func listingOf(descriptor, code string) listing.MethodListing {
	return listing.MethodListing{
		Name:   "test",
		Desc:   descriptor,
		Access: []string{"static"},
		Code:   code,
	}
}

func TestConformance(t *testing.T) {
	tests, err := LoadAll(TestPath)
	require.NoError(t, err)
	require.NotEmpty(t, tests)

	runner := NewRunner(zaptest.NewLogger(t))
	results := runner.RunAll(tests)

	byFile := make(map[string][]TestResult)
	var files []string
	for _, r := range results {
		if _, ok := byFile[r.Test.File]; !ok {
			files = append(files, r.Test.File)
		}
		byFile[r.Test.File] = append(byFile[r.Test.File], r)
	}

	for _, file := range files {
		t.Run(file, func(t *testing.T) {
			for _, r := range byFile[file] {
				t.Run(r.Test.Test.Name, func(t *testing.T) {
					if r.Skipped {
						t.Skipf("skipped: %s", r.SkipReason)
					}
					assert.NoError(t, r.Error)
				})
			}
		})
	}

	t.Logf("%v", ComputeStats(results))
}

func TestLoadAll(t *testing.T) {
	tests, err := LoadAll(TestPath)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, lt := range tests {
		assert.NotEmpty(t, lt.Test.Name, "%s", lt.File)
		key := lt.File + "/" + lt.Test.Name
		assert.False(t, names[key], "duplicate test %s", key)
		names[key] = true
		assert.True(t, lt.Test.Error != "" || len(lt.Test.Expect) > 0,
			"%s checks nothing", key)
	}
}

func TestRunnerReportsMismatch(t *testing.T) {
	stack := []string{"J"}
	lt := LoadedTest{File: "inline", Test: TestCase{
		Name:   "wrong",
		Method: listingOf("()V", "iconst_1\npop\nreturn"),
		Expect: []Expectation{{At: "1", Stack: &stack}},
	}}

	res := NewRunner(nil).Run(lt)
	assert.False(t, res.Passed)
	assert.ErrorContains(t, res.Error, "stack is [I], expected [J]")

	lt.Test.Expect = nil
	lt.Test.Error = "StackUnderflow"
	res = NewRunner(nil).Run(lt)
	assert.ErrorContains(t, res.Error, "analysis succeeded")

	lt.Test.Error = "Mystery"
	res = NewRunner(nil).Run(lt)
	assert.ErrorContains(t, res.Error, "expected one of BadDescriptor, FallOffEnd")

	lt.Test.Skip = "not today"
	res = NewRunner(nil).Run(lt)
	assert.True(t, res.Skipped)
	assert.Equal(t, Stats{Total: 1, Skipped: 1}, ComputeStats([]TestResult{res}))
}
