package jvmtype

import "github.com/BarrensZeppelin/jvmtype/internal/slices"

// Descriptors returns the precise descriptor of every value, see
// (*Value).Descriptor.
func Descriptors(vs []*Value) []string {
	return slices.Map(vs, (*Value).Descriptor)
}
