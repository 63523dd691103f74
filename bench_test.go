package jvmtype_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/jvmtype"
	"github.com/BarrensZeppelin/jvmtype/classfile"
)

var blackHole any

// loops returns the code of a method with n nested counting loops, each
// mixing values of all categories into the locals.
func loops(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "iconst_0\nistore %d\nloop%d:\n", i+1, i)
	}
	for i := n - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, `
			ldc 1L
			lstore %[2]d
			aload 0
			iload %[1]d
			aaload
			astore %[3]d
			iinc %[1]d 1
			iload %[1]d
			aload 0
			arraylength
			if_icmplt loop%[4]d
		`, i+1, n+1, n+3, i)
	}
	sb.WriteString("return\n")
	return sb.String()
}

func BenchmarkAnalyzeMethod(b *testing.B) {
	for _, n := range [...]int{1, 8, 32} {
		m := method(b, "([Ljava/lang/String;)V", loops(n))
		b.Run(fmt.Sprintf("Loops=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				res, err := jvmtype.AnalyzeMethod("Bench", m)
				require.NoError(b, err)
				blackHole = res
			}
		})
	}
}

// Benchmark parallel analysis of many independent methods.
func BenchmarkAnalyze(b *testing.B) {
	c := &classfile.Class{Name: "Bench"}
	for i := 0; i < 256; i++ {
		m := method(b, "([Ljava/lang/String;)V", loops(4))
		m.Name = fmt.Sprintf("m%d", i)
		c.Methods = append(c.Methods, m)
	}

	for _, workers := range [...]int{1, 4} {
		b.Run(fmt.Sprintf("Workers=%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				res, err := jvmtype.Analyze(context.Background(), jvmtype.AnalysisConfig{
					Classes:  []*classfile.Class{c},
					Workers:  workers,
					FailFast: true,
				})
				require.NoError(b, err)
				blackHole = res
			}
		})
	}
}
