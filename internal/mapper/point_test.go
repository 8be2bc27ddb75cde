package mapper

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"influxdb-listener/internal/domain"
)

var testRun = domain.RunContext{TestName: "Checkout", RunID: "R042", NodeName: "node-1"}

func strPtr(s string) *string { return &s }

func baseSample() domain.SampleRecord {
	return domain.SampleRecord{
		Label:         "Login",
		Duration:      120,
		Success:       true,
		ResponseCode:  "200",
		SampleCount:   1,
		SentBytes:     300,
		ReceivedBytes: 2048,
		ThreadName:    "Thread Group 1-1",
		Latency:       80,
		ConnectTime:   15,
	}
}

func TestMapToPointSuccess(t *testing.T) {
	ts := int64(1_700_000_000_123_456_789)
	p := MapToPoint(baseSample(), testRun, Options{IncludeFailureBody: true, TimestampNanos: ts})

	require.NoError(t, p.Validate())
	assert.Equal(t, RequestsMeasurement, p.Measurement)
	assert.Equal(t, domain.PrecisionNanoseconds, p.Precision)
	assert.Equal(t, ts, p.Time.UnixNano())

	assert.Equal(t, map[string]string{
		TagRequestName:  "Login",
		TagRunID:        "R042",
		TagTestName:     "Checkout",
		TagNodeName:     "node-1",
		TagResponseCode: "200",
	}, p.TagMap())

	assert.Equal(t, map[string]interface{}{
		FieldErrorCount:     int64(0),
		FieldThreadName:     "Thread Group 1-1",
		FieldRequestCount:   int64(1),
		FieldReceivedBytes:  int64(2048),
		FieldSentBytes:      int64(300),
		FieldResponseTime:   int64(120),
		FieldLatency:        int64(80),
		FieldConnectTime:    int64(15),
		FieldProcessingTime: int64(65),
	}, p.FieldMap())

	_, hasMsg := p.TagValue(TagErrorMessage)
	_, hasBody := p.TagValue(TagErrorResponseBody)
	assert.False(t, hasMsg)
	assert.False(t, hasBody)
}

func TestMapToPointFailureWithoutBody(t *testing.T) {
	s := baseSample()
	s.Success = false
	s.ErrorCount = 1
	s.ResponseCode = "500"
	s.FirstAssertionFailure = strPtr("Response code was 500")
	s.ResponseBody = []byte("internal error")

	p := MapToPoint(s, testRun, Options{IncludeFailureBody: false, TimestampNanos: 1})

	msg, ok := p.TagValue(TagErrorMessage)
	assert.True(t, ok)
	assert.Equal(t, "Response code was 500", msg)

	_, hasBody := p.TagValue(TagErrorResponseBody)
	assert.False(t, hasBody)

	errCount, _ := p.FieldValue(FieldErrorCount)
	assert.Equal(t, int64(1), errCount)
}

func TestMapToPointFailureWithBody(t *testing.T) {
	s := baseSample()
	s.FirstAssertionFailure = strPtr("Text not found")
	s.ResponseBody = []byte("status=error, reason: bad\nrequest")

	p := MapToPoint(s, testRun, Options{IncludeFailureBody: true, TimestampNanos: 1})

	body, ok := p.TagValue(TagErrorResponseBody)
	require.True(t, ok)
	assert.Equal(t, `status=\ error,\ \ reason:\ badrequest`, body)
	require.NoError(t, p.Validate())
}

func TestMapToPointFailureWithEmptyBody(t *testing.T) {
	s := baseSample()
	s.FirstAssertionFailure = strPtr("")

	for _, body := range [][]byte{nil, {}} {
		s.ResponseBody = body
		p := MapToPoint(s, testRun, Options{IncludeFailureBody: true, TimestampNanos: 1})

		got, ok := p.TagValue(TagErrorResponseBody)
		assert.True(t, ok)
		assert.Equal(t, EmptyErrorBody, got)

		msg, ok := p.TagValue(TagErrorMessage)
		assert.True(t, ok, "an empty failure message is still a failure")
		assert.Equal(t, "", msg)
	}
}

func TestMapToPointProcessingTimeIsNotClamped(t *testing.T) {
	s := baseSample()
	s.Latency = 10
	s.ConnectTime = 25

	p := MapToPoint(s, testRun, Options{TimestampNanos: 1})
	v, ok := p.FieldValue(FieldProcessingTime)
	assert.True(t, ok)
	assert.Equal(t, int64(-15), v)
}

func TestMapToPointPassesThroughOddValues(t *testing.T) {
	s := baseSample()
	s.SentBytes = -1
	s.ReceivedBytes = -20
	s.SampleCount = 0

	p := MapToPoint(s, testRun, Options{TimestampNanos: 1})
	sent, _ := p.FieldValue(FieldSentBytes)
	received, _ := p.FieldValue(FieldReceivedBytes)
	count, _ := p.FieldValue(FieldRequestCount)
	assert.Equal(t, int64(-1), sent)
	assert.Equal(t, int64(-20), received)
	assert.Equal(t, int64(1), count)

	s.SampleCount = 5
	p = MapToPoint(s, testRun, Options{TimestampNanos: 1})
	count, _ = p.FieldValue(FieldRequestCount)
	assert.Equal(t, int64(5), count)
}

func TestOutcomeOf(t *testing.T) {
	s := baseSample()
	assert.Equal(t, Success{}, OutcomeOf(s, true))

	s.FirstAssertionFailure = strPtr("boom")
	o, ok := OutcomeOf(s, false).(Failure)
	require.True(t, ok)
	assert.Equal(t, "boom", o.Message)
	assert.Nil(t, o.Body)

	s.ResponseBody = []byte("a b")
	o = OutcomeOf(s, true).(Failure)
	require.NotNil(t, o.Body)
	assert.Equal(t, `a\ b`, *o.Body)
}

func TestLifecyclePoint(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 123_456_789, time.UTC)

	p := LifecyclePoint(TypeStarted, testRun, now)
	require.NoError(t, p.Validate())
	assert.Equal(t, TestStartEndMeasurement, p.Measurement)
	assert.Equal(t, domain.PrecisionMilliseconds, p.Precision)
	assert.Equal(t, now.Truncate(time.Millisecond), p.Time)

	typ, _ := p.TagValue(TagType)
	assert.Equal(t, TypeStarted, typ)
	placeholder, _ := p.FieldValue(FieldPlaceholder)
	assert.Equal(t, "1", placeholder)

	p = LifecyclePoint(TypeFinished, testRun, now)
	typ, _ = p.TagValue(TagType)
	assert.Equal(t, TypeFinished, typ)
	runID, _ := p.TagValue(TagRunID)
	assert.Equal(t, "R042", runID)
}

func TestVirtualUsersPoint(t *testing.T) {
	p := VirtualUsersPoint(domain.ThreadCountSnapshot{
		MinActive: 2, MeanActive: 5, MaxActive: 9, Started: 10, Finished: 1,
	}, testRun, time.Now())

	require.NoError(t, p.Validate())
	assert.Equal(t, VirtualUsersMeasurement, p.Measurement)
	assert.Equal(t, map[string]interface{}{
		FieldMinActiveThreads:  int64(2),
		FieldMeanActiveThreads: int64(5),
		FieldMaxActiveThreads:  int64(9),
		FieldStartedThreads:    int64(10),
		FieldFinishedThreads:   int64(1),
	}, p.FieldMap())
	assert.Equal(t, "node-1", p.TagMap()[TagNodeName])
}

func TestUniqueTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 987_654_321, time.UTC)
	rnd := rand.New(rand.NewSource(7))

	base := now.UnixMilli() * int64(time.Millisecond)
	for i := 0; i < 100; i++ {
		ts := UniqueTimestamp(now, rnd)
		assert.GreaterOrEqual(t, ts, base)
		assert.Less(t, ts, base+int64(time.Millisecond))
	}
}
