package conformance

import "github.com/BarrensZeppelin/jvmtype/listing"

// TestSuite is a YAML file of conformance tests.
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase analyzes one method and checks the resulting frames, or the
// error the analysis fails with.
type TestCase struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description,omitempty"`
	Skip        string                `yaml:"skip,omitempty"`
	Method      listing.MethodListing `yaml:"method"`

	Expect []Expectation `yaml:"expect,omitempty"`

	// Error names the sentinel the analysis must fail with, e.g.
	// IllegalArrayLoad or StackUnderflow.
	Error string `yaml:"error,omitempty"`
	// ErrorAt is the instruction the failure must be reported at.
	ErrorAt string `yaml:"error_at,omitempty"`
}

// Expectation describes the frame before an instruction. Values are written
// as descriptors: "." for uninitialized, "A" for return addresses.
type Expectation struct {
	// At is an instruction index or a label name.
	At string `yaml:"at"`

	Stack  *[]string `yaml:"stack,omitempty"`
	Locals *[]string `yaml:"locals,omitempty"`

	Unreachable bool `yaml:"unreachable,omitempty"`
}
