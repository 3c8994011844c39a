// Package metrics records conversion pipeline measurements.
package metrics

import "time"

// Recorder receives pipeline measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	// RecordConversion records one converter invocation by format and
	// outcome ("success" or "failure").
	RecordConversion(format, result string, d time.Duration)
	// RecordBuild records a completed pipeline run by outcome.
	RecordBuild(outcome string, d time.Duration)
	// RecordDocuments records how many documents the run collected.
	RecordDocuments(n int)
}

// NoopRecorder discards all measurements. Used when metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordConversion(string, string, time.Duration) {}
func (NoopRecorder) RecordBuild(string, time.Duration)              {}
func (NoopRecorder) RecordDocuments(int)                            {}
