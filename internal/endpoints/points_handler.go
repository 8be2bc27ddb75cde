package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"influxdb-listener/internal/domain"
	"influxdb-listener/internal/mapper"
	"influxdb-listener/internal/util"
)

const defaultLimit = 100

// Millisecond bounds whose nanosecond conversion, inclusive end included,
// fits in an int64.
const (
	maxMillis = math.MaxInt64/int64(time.Millisecond) - 1
	minMillis = math.MinInt64 / int64(time.Millisecond)
)

// PointReader is the read side of a point store.
type PointReader interface {
	GetPoints(ctx context.Context, measurement string, startTime, endTime int64, limit, offset int) ([]domain.Point, error)
}

// PointsRequest selects points by measurement and time range. Start and End
// are unix milliseconds; zero means the last 24 hours.
type PointsRequest struct {
	Measurement string `json:"measurement"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
}

type PointsPage struct {
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Count  int            `json:"count"`
	Points []domain.Point `json:"points"`
}

type Points struct {
	Response APIResponse
	logger   util.Logger
	store    PointReader
	now      func() time.Time
}

func (p *Points) Init(store PointReader, logger util.Logger) {
	p.store = store
	p.logger = logger
	p.now = time.Now
}

func (p *Points) GetPointsHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		p.Response.WriteErrorResponseWithStatusCode(w, errors.New("method Not Allowed. Only GET requests are supported"), http.StatusMethodNotAllowed)
		return
	}

	routeParamValue := mux.Vars(r)

	limit, err := strconv.Atoi(routeParamValue["limit"])
	if err != nil {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit from URL. Err - ", err)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	offset, err := strconv.Atoi(routeParamValue["offset"])
	if err != nil {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting offset from URL. Err - ", err)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	var reqBody PointsRequest

	if err = json.NewDecoder(r.Body).Decode(&reqBody); err != nil && err != io.EOF {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling JSON Body. Err -", err)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	switch reqBody.Measurement {
	case "", mapper.RequestsMeasurement, mapper.TestStartEndMeasurement, mapper.VirtualUsersMeasurement:
	default:
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Unknown measurement requested - ", reqBody.Measurement)
		p.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: %s", ErrUnknownMeasurement, reqBody.Measurement), http.StatusBadRequest)
		return
	}

	now := p.now()
	startTime := reqBody.Start
	endTime := reqBody.End

	if startTime == 0 {
		startTime = now.Add(-24 * time.Hour).UnixMilli()
	}
	if endTime == 0 {
		endTime = now.UnixMilli()
	}

	if startTime < minMillis || startTime > maxMillis || endTime < minMillis || endTime > maxMillis {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Given time range is out of bounds. startTime - ", startTime, " endTime - ", endTime)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrTimeOutOfRange, http.StatusBadRequest)
		return
	}

	if startTime > endTime {
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Given startTime is greater than endTime. startTime - ", startTime, " endTime - ", endTime)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidTimeRange, http.StatusBadRequest)
		return
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	// the range is inclusive of the whole end millisecond
	startNs := startTime * int64(time.Millisecond)
	endNs := (endTime+1)*int64(time.Millisecond) - 1

	fetched, err := p.store.GetPoints(r.Context(), reqBody.Measurement, startNs, endNs, limit, offset)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled")
			p.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
			return
		}
		p.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while GetPoints(). Err - ", err)
		p.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusInternalServerError)
		return
	}

	if len(fetched) == 0 {
		p.logger.LogEvent(util.LOG_LEVEL_WARN, "No points in range ", startTime, " - ", endTime)
		p.Response.WriteErrorResponseWithStatusCode(w, ErrNoPointsAvailable, http.StatusNotFound)
		return
	}

	p.Response.WriteResultResponse(w, PointsPage{
		Limit:  limit,
		Offset: offset,
		Count:  len(fetched),
		Points: fetched,
	})
}
