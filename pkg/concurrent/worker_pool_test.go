package concurrent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	jobs := make([]int, 100)
	for i := range jobs {
		jobs[i] = i
	}

	got := Map(4, jobs, func(j int) int { return j * j })
	sort.Ints(got)

	assert.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestMapNoJobs(t *testing.T) {
	got := Map(0, []string{}, func(s string) int { return len(s) })
	assert.Empty(t, got)
}
