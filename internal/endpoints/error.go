package endpoints

import (
	"errors"
	"fmt"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	POINTS_NOT_AVAILABLE = iota + 101 // 101 - No points found for the given criteria
	INVALID_REQUEST_BODY              // 102 - Error parsing request body
	INVALID_PARAMETERS                // 103 - Invalid URL parameters (e.g., non-integer limit/offset)
	INVALID_TIME_RANGE                // 104 - Start time is after end time, or out of bounds
	REQUEST_CANCELLED                 // 105 - Request was cancelled by client or server timeout
	UNKNOWN_MEASUREMENT               // 106 - Measurement is not one the listener writes
)

var (
	ErrNoPointsAvailable  = errors.New("no points available for the specified criteria")
	ErrInvalidRequestBody = errors.New("invalid request body format or missing fields")
	ErrInvalidParameters  = errors.New("invalid limit or offset parameter; must be integers")
	ErrInvalidTimeRange   = errors.New("start timestamp cannot be after end timestamp")
	ErrTimeOutOfRange     = fmt.Errorf("%w: timestamps must be unix milliseconds", ErrInvalidTimeRange)
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrUnknownMeasurement = errors.New("unknown measurement")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, ErrNoPointsAvailable):
		return POINTS_NOT_AVAILABLE
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrInvalidTimeRange):
		return INVALID_TIME_RANGE
	case errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrUnknownMeasurement):
		return UNKNOWN_MEASUREMENT
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
