package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BarrensZeppelin/jvmtype"
	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/listing"
)

func assemble(t *testing.T, ml listing.MethodListing) *bytecode.Method {
	t.Helper()
	m, err := ml.Method()
	require.NoError(t, err)
	return m
}

func descriptors(f *frame) (locals, stack []string) {
	return jvmtype.Descriptors(f.Locals()), jvmtype.Descriptors(f.Stack())
}

func TestEntryFrame(t *testing.T) {
	a := analysis.NewAnalyzer[*jvmtype.Value](interp, analysis.Options{})

	maxLocals := 8
	m := assemble(t, listing.MethodListing{
		Name: "m", Desc: "(ILjava/lang/Object;D[J)V",
		MaxLocals: &maxLocals, Code: "return",
	})
	frames, err := a.Analyze("pkg/C", m)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	locals, stack := descriptors(frames[0])
	assert.Equal(t, []string{"Lpkg/C;", "I", "Ljava/lang/Object;", "D", ".", "[J", ".", "."}, locals)
	assert.Empty(t, stack)

	m.MaxLocals = 4
	_, err = a.Analyze("pkg/C", m)
	assert.ErrorIs(t, err, analysis.ErrLocalOutOfRange)

	m.Desc = "broken"
	_, err = a.Analyze("pkg/C", m)
	assert.Error(t, err)
}

func TestHandlers(t *testing.T) {
	a := analysis.NewAnalyzer[*jvmtype.Value](interp, analysis.Options{})
	m := assemble(t, listing.MethodListing{
		Name: "m", Desc: "()V", Access: []string{"static"},
		Code: `
		start:
			iconst_1
			istore 0
		end:
			return
		io:
			astore 1
			return
		any:
			astore 1
			return
		`,
		TryCatch: []listing.TryCatch{
			{Start: "start", End: "end", Handler: "io", Type: "java/io/IOException"},
			{Start: "start", End: "end", Handler: "any"},
		},
	})

	frames, err := a.Analyze("C", m)
	require.NoError(t, err)

	idx := m.Index()
	io, catchAll := idx[m.TryCatch[0].Handler], idx[m.TryCatch[1].Handler]
	locals, stack := descriptors(frames[io])
	assert.Equal(t, []string{"Ljava/io/IOException;"}, stack)
	assert.Equal(t, []string{".", "."}, locals)

	_, stack = descriptors(frames[catchAll])
	assert.Equal(t, []string{"Ljava/lang/Throwable;"}, stack)

	// Blocks referring to labels outside the method are rejected.
	m.TryCatch[0].Start = &bytecode.Label{Name: "elsewhere"}
	_, err = a.Analyze("C", m)
	assert.ErrorIs(t, err, analysis.ErrUnknownLabel)
}

func TestSubroutines(t *testing.T) {
	a := analysis.NewAnalyzer[*jvmtype.Value](interp, analysis.Options{})
	m := assemble(t, listing.MethodListing{
		Name: "m", Desc: "()V", Access: []string{"static"},
		Code: `
			iconst_0
			istore 1
			jsr sub
			fconst_0
			fstore 1
			jsr sub
			return
		sub:
			astore 0
			ret 0
		`,
	})

	frames, err := a.Analyze("C", m)
	require.NoError(t, err)

	// Both returns are joined, so the local stored in between is lost.
	locals, _ := descriptors(frames[3])
	assert.Equal(t, []string{"A", "."}, locals)
	locals, _ = descriptors(frames[6])
	assert.Equal(t, []string{"A", "."}, locals)
}

func TestUnknownJumpTarget(t *testing.T) {
	a := analysis.NewAnalyzer[*jvmtype.Value](interp, analysis.Options{})
	m := &bytecode.Method{
		Name: "m", Desc: "()V", Access: bytecode.AccStatic,
		Instructions: []bytecode.Insn{
			&bytecode.JumpInsn{Op: bytecode.GOTO, Target: &bytecode.Label{Name: "nowhere"}},
		},
	}

	_, err := a.Analyze("C", m)
	require.ErrorIs(t, err, analysis.ErrUnknownLabel)
	var aerr *analysis.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 0, aerr.Index)
}

func TestAnalyzerLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := analysis.NewAnalyzer[*jvmtype.Value](interp, analysis.Options{Logger: zap.New(core)})

	m := assemble(t, listing.MethodListing{
		Name: "m", Desc: "()V", Access: []string{"static"},
		Code: "goto end\nnop\nend:\nreturn",
	})
	_, err := a.Analyze("C", m)
	require.NoError(t, err)

	done := logs.FilterMessage("fixed point reached").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.EqualValues(t, 1, fields["unreachable"])
	assert.Equal(t, "C.m()V", fields["method"])
}
