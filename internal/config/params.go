package config

import (
	"strconv"
	"strings"
)

// Parameter keys understood by the listener.
const (
	KeyTestName                = "testName"
	KeyNodeName                = "nodeName"
	KeyRunID                   = "runId"
	KeyInfluxDBHost            = "influxDBHost"
	KeyInfluxDBPort            = "influxDBPort"
	KeyInfluxDBUser            = "influxDBUser"
	KeyInfluxDBPassword        = "influxDBPassword"
	KeyInfluxDBDatabase        = "influxDBDatabase"
	KeyRetentionPolicy         = "retentionPolicy"
	KeySamplersList            = "samplersList"
	KeyUseRegexForSamplerList  = "useRegexForSamplerList"
	KeyRecordSubSamples        = "recordSubSamples"
	KeyIncludeBodyOfFailures   = "saveResponseBodyOfFailures"
	KeyStorageType             = "storageType"
	KeySQLitePath              = "sqlitePath"
	KeyInfluxDBFlushIntervalMs = "influxDBFlushInterval"
	KeyInfluxDBBatchSize       = "influxDBBatchSize"
	KeyInfluxDBTimeoutMs       = "influxDBTimeout"
)

const (
	DefaultTestName        = "Test"
	DefaultNodeName        = "Test-Node"
	DefaultRunID           = "R001"
	DefaultInfluxDBHost    = "localhost"
	DefaultInfluxDBPort    = 8086
	DefaultDatabase        = "jmeter"
	DefaultRetentionPolicy = "autogen"
	DefaultSamplersList    = ".*"
	DefaultSQLitePath      = "../db/points.db"

	StorageInfluxDB = "influxdb"
	StorageSQLite   = "sqlite"
)

// Params are the string parameters a host hands to the listener.
type Params map[string]string

// DefaultParameters lists every parameter with the value offered to users.
func DefaultParameters() Params {
	return Params{
		KeyTestName:                DefaultTestName,
		KeyNodeName:                DefaultNodeName,
		KeyRunID:                   DefaultRunID,
		KeyInfluxDBHost:            DefaultInfluxDBHost,
		KeyInfluxDBPort:            strconv.Itoa(DefaultInfluxDBPort),
		KeyInfluxDBUser:            "",
		KeyInfluxDBPassword:        "",
		KeyInfluxDBDatabase:        DefaultDatabase,
		KeyRetentionPolicy:         DefaultRetentionPolicy,
		KeySamplersList:            DefaultSamplersList,
		KeyUseRegexForSamplerList:  "true",
		KeyRecordSubSamples:        "true",
		KeyIncludeBodyOfFailures:   "true",
		KeyStorageType:             StorageInfluxDB,
		KeySQLitePath:              DefaultSQLitePath,
		KeyInfluxDBFlushIntervalMs: "1000",
		KeyInfluxDBBatchSize:       "1000",
		KeyInfluxDBTimeoutMs:       "60000",
	}
}

// Get returns the value of key, or def when the key is absent.
func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Bool is true only for a case-insensitive "true"; def applies when absent.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// Int returns def when key is absent or blank.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

// Merge returns a copy of p overlaid with other.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
