package slices

import "strings"

// Map applies f to every element of l.
func Map[L ~[]X, X, Y any](l L, f func(X) Y) []Y {
	r := make([]Y, len(l))
	for i, x := range l {
		r[i] = f(x)
	}
	return r
}

// Join formats every element of l with f and joins the results with sep.
func Join[L ~[]X, X any](l L, f func(X) string, sep string) string {
	var sb strings.Builder
	for i, x := range l {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(f(x))
	}
	return sb.String()
}
