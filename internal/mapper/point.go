package mapper

import (
	"time"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/util"
)

const oneMsInNanoseconds = int64(time.Millisecond)

type Options struct {
	IncludeFailureBody bool
	TimestampNanos     int64
}

// Outcome is either Success or Failure.
type Outcome interface {
	isOutcome()
}

type Success struct{}

type Failure struct {
	Message string
	// Body is nil unless the response body is to be recorded.
	Body *string
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// OutcomeOf classifies sample by its first assertion failure.
func OutcomeOf(sample domain.SampleRecord, includeFailureBody bool) Outcome {
	if sample.FirstAssertionFailure == nil {
		return Success{}
	}

	f := Failure{Message: *sample.FirstAssertionFailure}
	if includeFailureBody {
		body := EmptyErrorBody
		if len(sample.ResponseBody) > 0 {
			body = util.Escape(string(sample.ResponseBody))
		}
		f.Body = &body
	}
	return f
}

// MapToPoint builds the requests point for one sample.
func MapToPoint(sample domain.SampleRecord, rc domain.RunContext, opts Options) domain.Point {
	p := domain.NewPoint(RequestsMeasurement, time.Unix(0, opts.TimestampNanos), domain.PrecisionNanoseconds).
		Tag(TagRequestName, sample.Label).
		Tag(TagRunID, rc.RunID).
		Tag(TagTestName, rc.TestName).
		Tag(TagNodeName, rc.NodeName).
		Tag(TagResponseCode, sample.ResponseCode).
		AddField(FieldErrorCount, sample.ErrorCount).
		AddField(FieldThreadName, sample.ThreadName).
		AddField(FieldRequestCount, sampleCount(sample)).
		AddField(FieldReceivedBytes, sample.ReceivedBytes).
		AddField(FieldSentBytes, sample.SentBytes).
		AddField(FieldResponseTime, sample.Duration).
		AddField(FieldLatency, sample.Latency).
		AddField(FieldConnectTime, sample.ConnectTime).
		AddField(FieldProcessingTime, sample.Latency-sample.ConnectTime)

	switch o := OutcomeOf(sample, opts.IncludeFailureBody).(type) {
	case Failure:
		p.Tag(TagErrorMessage, o.Message)
		if o.Body != nil {
			p.Tag(TagErrorResponseBody, *o.Body)
		}
	case Success:
	}

	return *p
}

// sampleCount treats an unset count as a single sample.
func sampleCount(sample domain.SampleRecord) int64 {
	if sample.SampleCount == 0 {
		return 1
	}
	return sample.SampleCount
}

// LifecyclePoint marks the start or end of a test run.
func LifecyclePoint(kind string, rc domain.RunContext, t time.Time) domain.Point {
	return *domain.NewPoint(TestStartEndMeasurement, t.Truncate(time.Millisecond), domain.PrecisionMilliseconds).
		Tag(TagType, kind).
		Tag(TagNodeName, rc.NodeName).
		Tag(TagRunID, rc.RunID).
		Tag(TagTestName, rc.TestName).
		AddField(FieldPlaceholder, "1")
}

func VirtualUsersPoint(s domain.ThreadCountSnapshot, rc domain.RunContext, t time.Time) domain.Point {
	return *domain.NewPoint(VirtualUsersMeasurement, t.Truncate(time.Millisecond), domain.PrecisionMilliseconds).
		Tag(TagNodeName, rc.NodeName).
		Tag(TagTestName, rc.TestName).
		Tag(TagRunID, rc.RunID).
		AddField(FieldMinActiveThreads, int64(s.MinActive)).
		AddField(FieldMaxActiveThreads, int64(s.MaxActive)).
		AddField(FieldMeanActiveThreads, int64(s.MeanActive)).
		AddField(FieldStartedThreads, int64(s.Started)).
		AddField(FieldFinishedThreads, int64(s.Finished))
}

// RandSource is satisfied by *rand.Rand.
type RandSource interface {
	Int63n(n int64) int64
}

// UniqueTimestamp spreads points recorded within the same millisecond so
// they do not overwrite each other in the store.
func UniqueTimestamp(now time.Time, rnd RandSource) int64 {
	return now.UnixMilli()*oneMsInNanoseconds + rnd.Int63n(oneMsInNanoseconds)
}
