package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAggregation(t *testing.T) {
	b := New()
	require.NotEmpty(t, b.ID)

	b.Add(JobResult{Document: "articles/intro", Format: "html"})
	b.Add(JobResult{Document: "tutorials/3.0/using", Format: "pdf", Error: "exit status 1", Stderr: "boom"})
	b.Add(JobResult{Document: "tutorials/3.0/using", Format: "ebook", Skipped: true, SkipReason: "unchanged"})
	b.AddUnclassified()
	b.Finish()

	assert.Equal(t, 1, b.Succeeded())
	assert.Equal(t, 1, b.Failed())
	assert.Equal(t, 1, b.Skipped())
	assert.Equal(t, 1, b.Unclassified)
	assert.Equal(t, OutcomeFailure, b.Outcome())
	assert.GreaterOrEqual(t, b.Duration, time.Duration(0))
}

func TestBuildOutcomeSuccess(t *testing.T) {
	b := New()
	b.Add(JobResult{Document: "a/b", Format: "html"})
	b.Add(JobResult{Document: "a/b", Format: "ebook", Skipped: true, SkipReason: "unchanged"})
	assert.Equal(t, OutcomeSuccess, b.Outcome())
}

func TestBuildConcurrentAdd(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Add(JobResult{Document: "d", Format: "html"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Succeeded())
}
