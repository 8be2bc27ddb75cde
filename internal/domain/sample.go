package domain

import (
	"context"
	"time"
)

// SampleRecord is one executed test step as reported by the load-test engine.
type SampleRecord struct {
	Label                 string
	Timestamp             time.Time
	Duration              int64 // ms
	Success               bool
	ResponseCode          string
	FirstAssertionFailure *string
	ResponseBody          []byte
	ErrorCount            int64
	SampleCount           int64
	SentBytes             int64
	ReceivedBytes         int64
	ThreadName            string
	Latency               int64 // ms
	ConnectTime           int64 // ms
	AllThreads            int
	SubResults            []SampleRecord
}

// RunContext identifies the test run on every emitted point.
type RunContext struct {
	TestName string `json:"test_name"`
	RunID    string `json:"run_id"`
	NodeName string `json:"node_name"`
}

// ThreadCounts are the host engine's live virtual-user counters.
type ThreadCounts struct {
	Active   int
	Started  int
	Finished int
}

type ThreadCountSnapshot struct {
	MinActive  int
	MeanActive int
	MaxActive  int
	Started    int
	Finished   int
}

// ThreadCounter is implemented by the host engine.
type ThreadCounter interface {
	ThreadCounts() ThreadCounts
}

// BackendListener is the lifecycle the host engine drives.
type BackendListener interface {
	OnSetup(ctx context.Context, params map[string]string) error
	OnSamples(samples []SampleRecord)
	OnTick()
	OnTeardown(ctx context.Context)
}
