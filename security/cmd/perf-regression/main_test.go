package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/miaomc/passport
BenchmarkIssueSession-8     	   50000	     20000 ns/op	    1200 B/op	      20 allocs/op
BenchmarkIssueSession-8     	   50000	     22000 ns/op	    1200 B/op	      20 allocs/op
BenchmarkVerifySession-8    	  100000	     10000 ns/op	     600 B/op	      10 allocs/op
BenchmarkVerifyEnvelope-8   	    2000	    800000 ns/op	   40000 B/op	     120 allocs/op
BenchmarkUntracked-8        	    2000	        10 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	assert.Equal(t, []float64{20000, 22000}, samples["BenchmarkIssueSession"]["ns/op"])
	assert.Equal(t, []float64{1200, 1200}, samples["BenchmarkIssueSession"]["B/op"])
	assert.Equal(t, []float64{10}, samples["BenchmarkVerifySession"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkUntracked")
}

func TestCompare(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	t.Run("within threshold", func(t *testing.T) {
		rows, failures := compare(baseline, baseline, defaultThreshold)
		assert.Empty(t, failures)
		require.Len(t, rows, 5)
		assert.Equal(t, "BenchmarkIssueSession", rows[0].Benchmark)
		assert.Equal(t, 21000.0, rows[0].Baseline)
	})

	t.Run("regression", func(t *testing.T) {
		candidate, err := parseBenchmarks(strings.NewReader(strings.ReplaceAll(baselineOutput, "10000 ns/op", "20000 ns/op")))
		require.NoError(t, err)

		_, failures := compare(baseline, candidate, defaultThreshold)
		require.Len(t, failures, 1)
		assert.Contains(t, failures[0], "BenchmarkVerifySession ns/op regressed by +100.00%")
	})

	t.Run("missing samples", func(t *testing.T) {
		_, failures := compare(baseline, sampleSet{}, defaultThreshold)
		assert.Len(t, failures, 5)
	})
}

func TestNormalizeBenchmarkName(t *testing.T) {
	assert.Equal(t, "BenchmarkIssueSession", normalizeBenchmarkName("BenchmarkIssueSession-16"))
	assert.Equal(t, "BenchmarkIssueSession", normalizeBenchmarkName("BenchmarkIssueSession"))
	assert.Equal(t, "BenchmarkA-b", normalizeBenchmarkName("BenchmarkA-b"))
}

func TestMedian(t *testing.T) {
	assert.Zero(t, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}
