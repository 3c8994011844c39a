// Package report aggregates per-job conversion outcomes for a single run.
package report

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome values for a finished build.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// JobResult is the outcome of one (document, format) conversion job.
type JobResult struct {
	Document   string        `json:"document"`
	Format     string        `json:"format"`
	Error      string        `json:"error,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	Skipped    bool          `json:"skipped,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Build is the aggregate record of one pipeline run. Safe for concurrent
// Add calls (the e-book phase runs alongside the HTML/PDF pipeline).
type Build struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Documents    int           `json:"documents"`
	Assets       int           `json:"assets"`
	Unclassified int           `json:"unclassified"`
	Results      []JobResult   `json:"results"`

	mu sync.Mutex
}

// New starts a build record with a fresh id.
func New() *Build {
	return &Build{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Add appends a job result.
func (b *Build) Add(r JobResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Results = append(b.Results, r)
}

// AddUnclassified counts a document whose type has no registry entry.
func (b *Build) AddUnclassified() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Unclassified++
}

// Finish freezes the run duration.
func (b *Build) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Duration = time.Since(b.StartedAt)
}

// Failed returns the number of failed jobs.
func (b *Build) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.Results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// Succeeded returns the number of completed jobs.
func (b *Build) Succeeded() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.Results {
		if r.Error == "" && !r.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the number of skipped jobs.
func (b *Build) Skipped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.Results {
		if r.Skipped {
			n++
		}
	}
	return n
}

// FailedDocuments returns the ids of documents with at least one failed
// job this run.
func (b *Build) FailedDocuments() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]bool)
	for _, r := range b.Results {
		if r.Error != "" {
			out[r.Document] = true
		}
	}
	return out
}

// Outcome reports the overall run outcome. Any failed job makes the whole
// run a failure (best-effort batch, but the exit status must reflect it).
func (b *Build) Outcome() string {
	if b.Failed() > 0 {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
