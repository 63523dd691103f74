package slices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Empty(t, Map([]int(nil), strconv.Itoa))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "1 2 3", Join([]int{1, 2, 3}, strconv.Itoa, " "))
	assert.Equal(t, "7", Join([]int{7}, strconv.Itoa, ", "))
	assert.Equal(t, "", Join([]int(nil), strconv.Itoa, " "))
}
