package jtl

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"influxdb-listener/internal/domain"
)

// Result file columns read by Reader.
const (
	ColTimeStamp      = "timeStamp"
	ColElapsed        = "elapsed"
	ColLabel          = "label"
	ColResponseCode   = "responseCode"
	ColThreadName     = "threadName"
	ColSuccess        = "success"
	ColFailureMessage = "failureMessage"
	ColBytes          = "bytes"
	ColSentBytes      = "sentBytes"
	ColAllThreads     = "allThreads"
	ColLatency        = "Latency"
	ColConnect        = "Connect"
	ColSampleCount    = "SampleCount"
	ColErrorCount     = "ErrorCount"
)

var (
	ErrMissingColumn = errors.New("result file is missing a required column")
	ErrEmptyFile     = errors.New("result file has no header")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Reader yields samples from a JMeter CSV result file. Gzip and zstd
// compressed files are detected from their leading bytes.
type Reader struct {
	csv     *csv.Reader
	columns map[string]int
	closers []io.Closer
	line    int
}

// Open reads the result file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader reads the header row from src. Closing the Reader does not close src.
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{}

	in, err := r.decompress(bufio.NewReader(src))
	if err != nil {
		return nil, err
	}

	r.csv = csv.NewReader(in)
	r.csv.FieldsPerRecord = -1
	r.csv.ReuseRecord = true

	header, err := r.csv.Read()
	if err == io.EOF {
		r.Close()
		return nil, ErrEmptyFile
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	r.line = 1

	r.columns = make(map[string]int, len(header))
	for i, name := range header {
		r.columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{ColTimeStamp, ColElapsed, ColLabel} {
		if _, ok := r.columns[required]; !ok {
			r.Close()
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return r, nil
}

func (r *Reader) decompress(br *bufio.Reader) (io.Reader, error) {
	magic, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		r.closers = append(r.closers, zr)
		return zr, nil
	case bytes.Equal(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error opening zstd stream: %w", err)
		}
		r.closers = append(r.closers, zr.IOReadCloser())
		return zr, nil
	default:
		return br, nil
	}
}

// Next returns the next sample, or io.EOF after the last one.
func (r *Reader) Next() (domain.SampleRecord, error) {
	record, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return domain.SampleRecord{}, io.EOF
		}
		return domain.SampleRecord{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	r.line++

	s, err := r.parse(record)
	if err != nil {
		return domain.SampleRecord{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	return s, nil
}

func (r *Reader) parse(record []string) (domain.SampleRecord, error) {
	var s domain.SampleRecord

	ts, err := r.int(record, ColTimeStamp, 0)
	if err != nil {
		return s, err
	}
	s.Timestamp = time.UnixMilli(ts)

	if s.Duration, err = r.int(record, ColElapsed, 0); err != nil {
		return s, err
	}
	s.Label = r.str(record, ColLabel)
	s.ResponseCode = r.str(record, ColResponseCode)
	s.ThreadName = r.str(record, ColThreadName)
	s.Success = r.str(record, ColSuccess) != "false"

	if msg := r.str(record, ColFailureMessage); msg != "" {
		s.FirstAssertionFailure = &msg
	}

	if s.ReceivedBytes, err = r.int(record, ColBytes, 0); err != nil {
		return s, err
	}
	if s.SentBytes, err = r.int(record, ColSentBytes, 0); err != nil {
		return s, err
	}
	if s.Latency, err = r.int(record, ColLatency, 0); err != nil {
		return s, err
	}
	if s.ConnectTime, err = r.int(record, ColConnect, 0); err != nil {
		return s, err
	}
	if s.SampleCount, err = r.int(record, ColSampleCount, 1); err != nil {
		return s, err
	}

	var defaultErrors int64
	if !s.Success {
		defaultErrors = 1
	}
	if s.ErrorCount, err = r.int(record, ColErrorCount, defaultErrors); err != nil {
		return s, err
	}

	all, err := r.int(record, ColAllThreads, 0)
	if err != nil {
		return s, err
	}
	s.AllThreads = int(all)
	return s, nil
}

func (r *Reader) str(record []string, column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

// int returns def for absent or empty columns.
func (r *Reader) int(record []string, column string, def int64) (int64, error) {
	v := strings.TrimSpace(r.str(record, column))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", column, err)
	}
	return n, nil
}

// Close releases the decompressor and the file opened by Open.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
