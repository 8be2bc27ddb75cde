package jtl

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultFile = `timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect
1700000000123,120,Login,200,OK,Thread Group 1-1,text,true,,5120,310,2,2,http://shop/login,100,0,15
1700000000456,300,"Checkout, step 2",500,Server Error,Thread Group 1-2,text,false,Response code was 500,88,402,2,2,http://shop/checkout,290,0,20
`

func readAll(t *testing.T, r *Reader) int {
	t.Helper()
	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			return n
		}
		require.NoError(t, err)
		n++
	}
}

func TestReaderParsesSamples(t *testing.T) {
	r, err := NewReader(strings.NewReader(resultFile))
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Login", s.Label)
	assert.Equal(t, time.UnixMilli(1700000000123), s.Timestamp)
	assert.Equal(t, int64(120), s.Duration)
	assert.Equal(t, "200", s.ResponseCode)
	assert.Equal(t, "Thread Group 1-1", s.ThreadName)
	assert.True(t, s.Success)
	assert.Nil(t, s.FirstAssertionFailure)
	assert.Equal(t, int64(5120), s.ReceivedBytes)
	assert.Equal(t, int64(310), s.SentBytes)
	assert.Equal(t, int64(100), s.Latency)
	assert.Equal(t, int64(15), s.ConnectTime)
	assert.Equal(t, int64(1), s.SampleCount)
	assert.Equal(t, int64(0), s.ErrorCount)
	assert.Equal(t, 2, s.AllThreads)

	s, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Checkout, step 2", s.Label)
	assert.False(t, s.Success)
	require.NotNil(t, s.FirstAssertionFailure)
	assert.Equal(t, "Response code was 500", *s.FirstAssertionFailure)
	assert.Equal(t, int64(1), s.ErrorCount)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderMinimalColumns(t *testing.T) {
	r, err := NewReader(strings.NewReader("label,elapsed,timeStamp\nHome,7,1000\n"))
	require.NoError(t, err)

	s, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Home", s.Label)
	assert.Equal(t, int64(7), s.Duration)
	assert.True(t, s.Success)
	assert.Equal(t, 0, s.AllThreads)
	assert.NoError(t, r.Close())
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = NewReader(strings.NewReader("timeStamp,label\n1,a\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	r, err := NewReader(strings.NewReader("timeStamp,elapsed,label\n1,fast,a\n"))
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "column elapsed")
}

func TestReaderGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(resultFile))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, readAll(t, r))
	assert.NoError(t, r.Close())
}

func TestReaderZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(resultFile))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, readAll(t, r))
	assert.NoError(t, r.Close())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jtl")
	require.NoError(t, os.WriteFile(path, []byte(resultFile), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, readAll(t, r))
	assert.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.jtl"))
	assert.Error(t, err)
}
