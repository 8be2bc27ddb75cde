package mapper

// Series written by the listener.
const (
	RequestsMeasurement     = "requests"
	TestStartEndMeasurement = "testStartEnd"
	VirtualUsersMeasurement = "virtualUsers"
)

// Tags shared by all series.
const (
	TagRunID    = "runId"
	TagTestName = "testName"
	TagNodeName = "nodeName"
)

// requests series.
const (
	TagRequestName       = "requestName"
	TagResponseCode      = "responseCode"
	TagErrorMessage      = "errorMessage"
	TagErrorResponseBody = "errorResponseBody"

	FieldErrorCount     = "errorCount"
	FieldThreadName     = "threadName"
	FieldRequestCount   = "count"
	FieldReceivedBytes  = "receivedBytes"
	FieldSentBytes      = "sentBytes"
	FieldResponseTime   = "responseTime"
	FieldLatency        = "latency"
	FieldConnectTime    = "connectTime"
	FieldProcessingTime = "processingTime"

	// EmptyErrorBody replaces a missing body on failed samples.
	EmptyErrorBody = "ErrorBodyIsEmpty."
)

// testStartEnd series.
const (
	TagType          = "type"
	FieldPlaceholder = "placeholder"

	TypeStarted  = "STARTED"
	TypeFinished = "FINISHED"
)

// virtualUsers series.
const (
	FieldMinActiveThreads  = "minActiveThreads"
	FieldMeanActiveThreads = "meanActiveThreads"
	FieldMaxActiveThreads  = "maxActiveThreads"
	FieldStartedThreads    = "startedThreads"
	FieldFinishedThreads   = "finishedThreads"
)
